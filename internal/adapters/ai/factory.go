package ai

import (
	"context"

	"mentor/internal/adapters/config"
	"mentor/pkg/errors"
)

// Provider names accepted by the factory.
const (
	ProviderNameOpenAI = "openai"
	ProviderNameGemini = "gemini"
)

// NewClientFromConfig builds the configured chat provider and wraps it in a
// rate-limited retrying client.
func NewClientFromConfig(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	var (
		provider ChatProvider
		err      error
	)

	switch cfg.DefaultProvider {
	case ProviderNameOpenAI, "":
		provider, err = NewOpenAIProvider(cfg.OpenAIKey)
	case ProviderNameGemini:
		provider, err = NewGeminiProvider(ctx, cfg.GeminiKey)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown AI provider %q", cfg.DefaultProvider)
	}
	if err != nil {
		return nil, err
	}

	return NewClient(provider, ClientConfig{
		Model:          cfg.ChatModel,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		RequestsPerMin: cfg.RequestsPerMin,
	}), nil
}
