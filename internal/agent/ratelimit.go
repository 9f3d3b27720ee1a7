package agent

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a capability so calls start no faster than a fixed rate.
// Waiting for a token counts against the step's timeout.
type RateLimited struct {
	inner   Capability
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with the given burst.
func NewRateLimited(inner Capability, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Invoke waits for a token and then calls the wrapped capability.
func (r *RateLimited) Invoke(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.inner.Invoke(ctx, req)
}

var _ Capability = (*RateLimited)(nil)
