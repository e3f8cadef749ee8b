package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kinstory",
	Short: "Kinstory - cited biography drafts from family-history records",
	Long: `Kinstory writes draft biographies for people in a family-history graph.

It gathers the person's own notes and life events, mines the records of
parents, children, siblings, spouses and co-parents for facts about the
person, and asks a language model for a narrative in which every claim
carries a citation such as [Note:n1:Occupation].

Citations are checked against the records actually supplied. Anything that
does not resolve is rewritten to plain text, so a draft never points at a
record that does not exist.

Drafts are suggestions for human review, never authoritative history.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of kinstory.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kinstory %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.kinstory/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("store", "", "store driver (fixture, sqlite, postgres, neo4j)")
	rootCmd.PersistentFlags().String("fixture", "", "fixture file for the fixture store")
	rootCmd.PersistentFlags().String("llm-provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model for narratives")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("store.fixture_path", rootCmd.PersistentFlags().Lookup("fixture"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper(), model.DefaultConfig())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".kinstory"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match KINSTORY_*, e.g. KINSTORY_LLM_PROVIDER
	viper.SetEnvPrefix("KINSTORY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so env overrides reach Unmarshal
func setDefaults(v *viper.Viper, d *model.Config) {
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.fast_model", d.LLM.FastModel)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)
	v.SetDefault("llm.requests_per_second", d.LLM.RequestsPerSecond)
	v.SetDefault("llm.burst", d.LLM.Burst)
	v.SetDefault("llm.safety_threshold", d.LLM.SafetyThreshold)
	v.SetDefault("llm.http_proxy", d.LLM.HTTPProxy)
	v.SetDefault("llm.https_proxy", d.LLM.HTTPSProxy)
	v.SetDefault("llm.no_proxy", d.LLM.NoProxy)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.neo4j_uri", d.Store.Neo4jURI)
	v.SetDefault("store.neo4j_user", d.Store.Neo4jUser)
	v.SetDefault("store.neo4j_password", d.Store.Neo4jPassword)
	v.SetDefault("store.neo4j_database", d.Store.Neo4jDatabase)
	v.SetDefault("store.fixture_path", d.Store.FixturePath)
	v.SetDefault("store.auto_migrate", d.Store.AutoMigrate)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.memory_ttl", d.Cache.MemoryTTL)
	v.SetDefault("cache.disk_dir", d.Cache.DiskDir)
	v.SetDefault("cache.disk_ttl", d.Cache.DiskTTL)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_ttl", d.Cache.RedisTTL)

	v.SetDefault("mining.concurrency", d.Mining.Concurrency)
	v.SetDefault("mining.temperature", d.Mining.Temperature)
	v.SetDefault("mining.max_tokens", d.Mining.MaxTokens)

	v.SetDefault("generation.max_length", d.Generation.MaxLength)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.max_notes", d.Generation.MaxNotes)
	v.SetDefault("generation.max_events", d.Generation.MaxEvents)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("logging.mode", d.Logging.Mode)
}

// loadConfig builds the effective configuration: defaults, config file,
// KINSTORY_* env vars and flags, then provider credentials from their
// conventional env vars
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyProviderEnv(&cfg.LLM, os.Getenv)
	return cfg, nil
}

// applyProviderEnv fills credentials the config left empty
func applyProviderEnv(c *model.LLMConfig, getenv func(string) string) {
	switch strings.ToLower(c.Provider) {
	case "openai":
		if c.APIKey == "" {
			c.APIKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.APIKey == "" {
			c.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if c.APIKey == "" {
			c.APIKey = getenv("GEMINI_API_KEY")
		}
		if c.APIKey == "" {
			c.APIKey = getenv("GOOGLE_API_KEY")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if c.BaseURL == "" {
			c.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
}

func newLogger(cfg *model.Config) (*logging.Logger, error) {
	return logging.New(cfg.Logging.Mode, verbose)
}
