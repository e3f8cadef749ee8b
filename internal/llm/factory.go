package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/worker"
)

// NewProvider creates a new LLM provider based on configuration.
// A nil provider with a nil error means the LLM is disabled.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini)", config.Provider)
	}
}

// NewClient builds the provider and wraps it with rate limiting and retries
func NewClient(ctx context.Context, config Config, log *logging.Logger) (Provider, error) {
	p, err := NewProvider(ctx, config)
	if err != nil || p == nil {
		return p, err
	}

	if config.RequestsPerSecond > 0 {
		p = NewRateLimited(p, worker.NewLimiter(config.RequestsPerSecond, config.Burst))
	}
	return NewRetryProvider(p, config.MaxRetries, log), nil
}

// Close releases provider resources (the Gemini client) through any wrappers
func Close(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
