package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	aiP "github.com/chatkb/chatkb/internal/ai"
	"github.com/chatkb/chatkb/internal/config"
	"github.com/chatkb/chatkb/internal/crawler"
	"github.com/chatkb/chatkb/internal/db"
	"github.com/chatkb/chatkb/internal/embedcache"
	"github.com/chatkb/chatkb/internal/filestore"
	"github.com/chatkb/chatkb/internal/handler"
	"github.com/chatkb/chatkb/internal/job"
	"github.com/chatkb/chatkb/internal/middleware"
	"github.com/chatkb/chatkb/internal/repo"
	"github.com/chatkb/chatkb/internal/schedule"
	"github.com/chatkb/chatkb/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "chatkb",
		Short: "chatkb knowledge base server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run chatkb server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	sourceRepo := repo.NewSourceRepo(database)
	pageRepo := repo.NewPageRepo(database)
	fragmentRepo := repo.NewFragmentRepo(database)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	embedProvider, err := aiP.NewEmbedProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := aiP.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	if cfg.AI.CacheSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(
			embedder,
			cfg.AI.CacheSize,
			time.Duration(cfg.AI.CacheTTLSecs)*time.Second,
		)
	}

	intent := service.NewNoopIntentDetector()
	if cfg.AI.GenModel != "" {
		genProvider, err := aiP.NewProvider(cfg.AI.Provider, providerArgs)
		if err != nil {
			return fmt.Errorf("init gen provider: %w", err)
		}
		intent = service.NewLLMIntentDetector(aiP.NewGenerator(genProvider, cfg.AI.GenModel))
	}

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	fetcher := crawler.NewFetcher(cfg.Crawler.UserAgent)
	throttle := crawler.NewThrottle(time.Duration(cfg.Crawler.DelayMs) * time.Millisecond)
	resolver := crawler.NewResolver(fetcher, throttle, cfg.Crawler.MaxPages, cfg.Crawler.MaxDepth)

	plan := service.NewPlanGate(sourceRepo, cfg.Limits)
	ingestService := service.NewIngestService(sourceRepo, fragmentRepo, embedder, store, plan, intent)
	crawlService := service.NewCrawlService(sourceRepo, pageRepo, fragmentRepo, embedder, resolver, fetcher, throttle, plan, intent)
	searchService := service.NewSearchService(fragmentRepo, embedder)
	sourceService := service.NewSourceService(sourceRepo, pageRepo)

	deps := handler.RouterDeps{
		Sources:         handler.NewSourceHandler(ingestService, crawlService, sourceService),
		Search:          handler.NewSearchHandler(searchService),
		RateLimitWindow: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORS),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port+1)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("metrics server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Crawler.RefreshCron != "" && cfg.Crawler.RefreshAfterSec > 0 {
		refreshJob := job.NewRefreshJob(
			sourceRepo,
			crawlService,
			time.Duration(cfg.Crawler.RefreshAfterSec)*time.Second,
		)
		if err := scheduler.AddJob(refreshJob, cfg.Crawler.RefreshCron); err != nil {
			return fmt.Errorf("schedule refresh job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
