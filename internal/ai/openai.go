package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// The openai provider speaks the OpenAI wire format, which also covers
// self-hosted inference servers exposing a compatible endpoint.
type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) client(model string, embedModel string) (*openai.LLM, error) {
	token := p.apiKey
	if token == "" {
		// Local OpenAI-compatible services accept any token.
		token = "none"
	}
	opts := []openai.Option{openai.WithToken(token)}
	if p.baseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.baseURL))
	}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if embedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(embedModel))
	}
	return openai.New(opts...)
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	client, err := p.client(model, "")
	if err != nil {
		return "", err
	}
	result, err := llms.GenerateFromSinglePrompt(ctx, client, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	client, err := p.client("", model)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	vectors, err := embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return vectors[0], nil
}

func createOpenAIFactory(args interface{}) (IGenProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &openAIProvider{apiKey: strings.TrimSpace(cfg.APIKey), baseURL: strings.TrimSpace(cfg.BaseURL)}, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &openAIProvider{apiKey: strings.TrimSpace(cfg.APIKey), baseURL: strings.TrimSpace(cfg.BaseURL)}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
