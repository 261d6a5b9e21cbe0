package perception

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"querynerd/internal/config"
)

// Provider names an LLM backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// NewClientFromConfig builds the client for the configured provider and
// wraps it in a TracingClient.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig, timeout time.Duration, logger *zap.Logger) (LLMClient, error) {
	var (
		client LLMClient
		model  string
	)

	switch Provider(cfg.Provider) {
	case ProviderGemini:
		gc, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		client, model = gc, gc.Model()

	case ProviderOpenAI:
		oc := NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    timeout,
			MaxRetries: 3,
		})
		client, model = oc, oc.Model()

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	return NewTracingClient(client, cfg.Provider, model, logger), nil
}
