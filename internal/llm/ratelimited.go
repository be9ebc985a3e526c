package llm

import (
	"context"
	"fmt"
)

// Waiter blocks until a request for key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// RateLimited throttles a Provider's completions, keyed by provider name
type RateLimited struct {
	Provider
	waiter Waiter
}

// NewRateLimited wraps provider so every Complete waits on waiter first
func NewRateLimited(provider Provider, waiter Waiter) *RateLimited {
	return &RateLimited{Provider: provider, waiter: waiter}
}

// Complete waits for the provider's rate limit, then delegates
func (r *RateLimited) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.waiter.Wait(ctx, r.Name()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Provider.Complete(ctx, req)
}
