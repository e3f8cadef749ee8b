package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ready reports whether key yields a token without a real wait
func ready(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) == nil
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	assert.Equal(t, 5, limiter.defaultBurst)

	l2 := NewLimiter(10, -1)
	assert.Equal(t, 5, l2.defaultBurst, "default burst for negative input")
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "openai/quality"))
	require.NoError(t, limiter.Wait(ctx, "openai/fast"))
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "gemini/fast"))

	// Burst of 1 is consumed
	assert.False(t, ready(limiter, "gemini/fast"))

	// Other keys have their own bucket
	assert.True(t, ready(limiter, "gemini/quality"))
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, ready(limiter, "any"))
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	require.True(t, ready(limiter, "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx, "slow"))
}
