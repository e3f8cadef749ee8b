package model

import "time"

// Config is the complete kinstory configuration
type Config struct {
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Mining     MiningConfig     `yaml:"mining" mapstructure:"mining"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig selects and tunes the generative model provider
type LLMConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"`     // openai, anthropic, ollama, gemini
	Model             string        `yaml:"model" mapstructure:"model"`           // Used for the "quality" tier
	FastModel         string        `yaml:"fast_model" mapstructure:"fast_model"` // Used for the "fast" tier (mining)
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables limiting
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	SafetyThreshold   string        `yaml:"safety_threshold" mapstructure:"safety_threshold"` // none, low, medium, high
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// StoreConfig selects the family graph backend
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // postgres, sqlite, neo4j, fixture
	DSN           string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Neo4jURI      string `yaml:"neo4j_uri,omitempty" mapstructure:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user,omitempty" mapstructure:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password,omitempty" mapstructure:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database,omitempty" mapstructure:"neo4j_database"`
	FixturePath   string `yaml:"fixture_path,omitempty" mapstructure:"fixture_path"`
	AutoMigrate   bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// CacheConfig controls caching of mined relative context
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	RedisAddr string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisTTL  time.Duration `yaml:"redis_ttl" mapstructure:"redis_ttl"`
}

// MiningConfig controls relative fact mining
type MiningConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"` // Capped at 5
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GenerationConfig controls narrative generation
type GenerationConfig struct {
	MaxLength   int     `yaml:"max_length" mapstructure:"max_length"` // Words
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxNotes    int     `yaml:"max_notes" mapstructure:"max_notes"`
	MaxEvents   int     `yaml:"max_events" mapstructure:"max_events"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // dev, prod
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "", // Disabled until configured
			Timeout:         60 * time.Second,
			MaxRetries:      3,
			Burst:           5,
			SafetyThreshold: "medium",
		},
		Store: StoreConfig{
			Driver:      "fixture",
			AutoMigrate: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
			RedisTTL:  24 * time.Hour,
		},
		Mining: MiningConfig{
			Concurrency: 5,
			Temperature: 0.2,
			MaxTokens:   2048,
		},
		Generation: GenerationConfig{
			MaxLength:   500,
			Temperature: 0.7,
			MaxTokens:   4096,
			MaxNotes:    15,
			MaxEvents:   15,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Mode: "dev",
		},
	}
}
