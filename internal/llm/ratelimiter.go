package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider enforces a client-side requests-per-minute cap in
// front of another Provider with a token bucket. It exists so a chatty
// deployment does not trip the upstream provider's own limits mid-run.
type RateLimitedProvider struct {
	inner Provider
	rpm   int

	mu       sync.Mutex
	tokens   int
	lastFill time.Time
}

// NewRateLimitedProvider caps the wrapped provider at rpm requests per
// minute. The bucket starts full so short bursts go through untouched.
func NewRateLimitedProvider(inner Provider, rpm int) Provider {
	return &RateLimitedProvider{
		inner:    inner,
		rpm:      rpm,
		tokens:   rpm,
		lastFill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string { return r.inner.Name() }

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, req)
}

// acquire blocks until a token is available or the context ends.
func (r *RateLimitedProvider) acquire(ctx context.Context) error {
	for {
		if r.takeToken() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (r *RateLimitedProvider) takeToken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(r.lastFill).Seconds() * float64(r.rpm) / 60.0)
	if refill > 0 {
		r.tokens += refill
		if r.tokens > r.rpm {
			r.tokens = r.rpm
		}
		r.lastFill = now
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}
