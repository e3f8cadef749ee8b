package llm

import (
	"context"
	"time"

	"github.com/ppiankov/kinstory/internal/model"
)

// Provider is a generative text completion backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate completes a prompt. An empty Text is a valid response and is
	// left for the caller to judge; only transport/API failures are errors.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ModelTier selects between the cheap extraction model and the narrative model
type ModelTier string

const (
	TierFast    ModelTier = "fast"
	TierQuality ModelTier = "quality"
)

// SafetyConfig is passed through to providers that support content filtering
type SafetyConfig struct {
	// Threshold is one of "none", "low", "medium", "high"
	Threshold string
}

// Request is a single completion request
type Request struct {
	Prompt          string
	System          string
	ModelTier       ModelTier
	Temperature     float32
	MaxOutputTokens int
	Safety          SafetyConfig
}

// Response is the provider's completion
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", ""
	Provider string

	// Model is used for the quality tier; FastModel for the fast tier
	Model     string
	FastModel string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama or an OpenAI-compatible gateway)
	BaseURL string

	// Timeout for a single API request
	Timeout time.Duration

	// MaxRetries for transient failures (after the first attempt)
	MaxRetries int

	// Rate limiting of outbound calls; zero disables it
	RequestsPerSecond float64
	Burst             int

	// Default safety threshold when a request leaves it empty
	SafetyThreshold string

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return ConfigFromModel(model.DefaultConfig().LLM)
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:          c.Provider,
		Model:             c.Model,
		FastModel:         c.FastModel,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Timeout:           c.Timeout,
		MaxRetries:        c.MaxRetries,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		SafetyThreshold:   c.SafetyThreshold,
		HTTPProxy:         c.HTTPProxy,
		HTTPSProxy:        c.HTTPSProxy,
		NoProxy:           c.NoProxy,
	}
}

// modelFor resolves the model name for a tier, falling back to def
func (c Config) modelFor(tier ModelTier, def string) string {
	if tier == TierFast && c.FastModel != "" {
		return c.FastModel
	}
	if c.Model != "" {
		return c.Model
	}
	return def
}

func (c Config) timeout(def time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return def
}

func maxTokens(req Request) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	return 1024
}
