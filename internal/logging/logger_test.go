package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.Info("provider configured", "provider", "openai", "api_key", "sk-123", "neo4j_password", "hunter2")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "openai", fields["provider"])
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "[REDACTED]", fields["neo4j_password"])
}

func TestLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core)).With("component", "miner")

	log.Debug("task done", "relative", "p2")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "miner", fields["component"])
	assert.Equal(t, "p2", fields["relative"])
}

func TestRedact_OddKeyValues(t *testing.T) {
	out := redact([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "test"} {
		log, err := New(mode, true)
		require.NoError(t, err, mode)
		require.NotNil(t, log)
	}
}
