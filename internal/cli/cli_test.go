package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/model"
)

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, model.DefaultConfig())
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	v := newViper()
	v.Set("llm.provider", "ollama")
	v.Set("llm.timeout", "90s")
	v.Set("mining.concurrency", 3)
	v.Set("store.driver", "sqlite")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Mining.Concurrency)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 500, cfg.Generation.MaxLength, "untouched keys keep defaults")
}

func TestApplyProviderEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-ant",
		"GOOGLE_API_KEY":    "g-key",
		"OLLAMA_BASE_URL":   "http://gpu:11434",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		provider string
		preset   string
		wantKey  string
		wantURL  string
	}{
		{"openai", "", "sk-openai", ""},
		{"claude", "", "sk-ant", ""},
		{"gemini", "", "g-key", ""},
		{"ollama", "", "", "http://gpu:11434"},
		{"openai", "from-config", "from-config", ""},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		c := model.LLMConfig{Provider: tt.provider, APIKey: tt.preset}
		applyProviderEnv(&c, getenv)
		assert.Equal(t, tt.wantKey, c.APIKey, tt.provider)
		assert.Equal(t, tt.wantURL, c.BaseURL, tt.provider)
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kinstory", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)

	assert.Error(t, writeDefaultConfig(path), "refuses to overwrite")
}

func TestMaskSecrets(t *testing.T) {
	cfg := *model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Store.DSN = "postgres://u:p@h/db"

	masked := maskSecrets(cfg)
	assert.Equal(t, "********", masked.LLM.APIKey)
	assert.Equal(t, "********", masked.Store.DSN)
	assert.Empty(t, masked.Store.Neo4jPassword)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "original untouched")
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"p1":         "p1",
		"tree/p 1":   "tree_p-1",
		"..":         "person",
		"a:b*c?":     "a_b_c_",
		"  spaced  ": "spaced",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "kinstory "+Version+"\n", buf.String())
}
