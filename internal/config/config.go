package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	Database  DatabaseConfig   `json:"database"`
	LogConfig logger.LogConfig `json:"log_config"`
	FileStore FileStoreConfig  `json:"file_store"`
	AI        AIConfig         `json:"ai"`
	Crawler   CrawlerConfig    `json:"crawler"`
	Limits    LimitsConfig     `json:"limits"`
	CORS      []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	EmbedModel     string      `json:"embed_model"`
	EmbedDimension int         `json:"embed_dimension"`
	GenModel       string      `json:"gen_model"`
	CacheSize      int         `json:"cache_size"`
	CacheTTLSecs   int         `json:"cache_ttl_secs"`
	Data           interface{} `json:"data"`
}

type CrawlerConfig struct {
	UserAgent       string `json:"user_agent"`
	DelayMs         int    `json:"delay_ms"`
	MaxPages        int    `json:"max_pages"`
	MaxDepth        int    `json:"max_depth"`
	RefreshCron     string `json:"refresh_cron"`
	RefreshAfterSec int64  `json:"refresh_after_secs"`
}

type LimitsConfig struct {
	MaxDocuments      int   `json:"max_documents"`
	MaxDocumentBytes  int64 `json:"max_document_bytes"`
	MaxPagesPerSource int   `json:"max_pages_per_source"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.EmbedDimension == 0 {
		cfg.AI.EmbedDimension = 768
	}
	if cfg.Crawler.UserAgent == "" {
		cfg.Crawler.UserAgent = "chatkb-crawler/1.0"
	}
	if cfg.Crawler.DelayMs == 0 {
		cfg.Crawler.DelayMs = 1000
	}
	if cfg.Crawler.MaxPages == 0 {
		cfg.Crawler.MaxPages = 50
	}
	if cfg.Crawler.MaxDepth == 0 {
		cfg.Crawler.MaxDepth = 3
	}
	if cfg.Limits.MaxDocuments == 0 {
		cfg.Limits.MaxDocuments = 100
	}
	if cfg.Limits.MaxDocumentBytes == 0 {
		cfg.Limits.MaxDocumentBytes = 10 << 20
	}
	if cfg.Limits.MaxPagesPerSource == 0 {
		cfg.Limits.MaxPagesPerSource = cfg.Crawler.MaxPages
	}
	return &cfg, nil
}
