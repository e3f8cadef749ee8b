package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/kinstory/internal/logging"
)

// DefaultMaxRetries is the number of retries after the first attempt
const DefaultMaxRetries = 3

// RetryProvider retries transient provider failures with exponential backoff
type RetryProvider struct {
	next       Provider
	maxRetries int
	baseDelay  time.Duration
	log        *logging.Logger

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryProvider wraps next. maxRetries < 0 disables retries; 0 uses the default.
func NewRetryProvider(next Provider, maxRetries int, log *logging.Logger) *RetryProvider {
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = logging.Nop()
	}
	return &RetryProvider{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		log:        log,
		sleep:      sleepCtx,
	}
}

// Close releases the wrapped provider's resources
func (r *RetryProvider) Close() error {
	return Close(r.next)
}

// Name returns the wrapped provider's name
func (r *RetryProvider) Name() string {
	return r.next.Name()
}

// Generate calls the wrapped provider, retrying transient errors (1s, 2s, 4s ...)
func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay << (attempt - 1)
			r.log.Debug("retrying LLM call", "provider", r.next.Name(), "attempt", attempt+1, "delay", delay, "error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s: gave up after %d attempts: %w", r.next.Name(), attempts, lastErr)
			}
		}

		attempts++
		resp, err := r.next.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%s: failed after %d attempts: %w", r.next.Name(), attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
