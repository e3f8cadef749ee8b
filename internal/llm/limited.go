package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/kinstory/internal/worker"
)

// RateLimited throttles calls per provider and model tier
type RateLimited struct {
	next    Provider
	limiter *worker.Limiter
}

// NewRateLimited wraps next with limiter
func NewRateLimited(next Provider, limiter *worker.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

// Name returns the wrapped provider's name
func (r *RateLimited) Name() string {
	return r.next.Name()
}

// Generate waits for a token, then calls the wrapped provider
func (r *RateLimited) Generate(ctx context.Context, req Request) (*Response, error) {
	tier := req.ModelTier
	if tier == "" {
		tier = TierQuality
	}
	if err := r.limiter.Wait(ctx, r.next.Name()+"/"+string(tier)); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Generate(ctx, req)
}

// Close releases the wrapped provider's resources
func (r *RateLimited) Close() error {
	return Close(r.next)
}
