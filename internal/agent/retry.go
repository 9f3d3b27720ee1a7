package agent

import (
	"context"
	"log"
	"time"
)

// Retrying wraps a capability and retries failed invocations with
// exponential backoff. Nothing wraps agents in it implicitly; callers opt in
// per agent through configuration.
type Retrying struct {
	inner       Capability
	name        string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetrying creates a wrapper allowing maxAttempts calls in total.
// The delay doubles after each failure, starting at baseDelay and capped at 30s.
func NewRetrying(inner Capability, name string, maxAttempts int, baseDelay time.Duration) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrying{
		inner:       inner,
		name:        name,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    30 * time.Second,
		sleep:       sleepCtx,
	}
}

// MaxAttempts returns the total number of calls allowed per invocation.
func (r *Retrying) MaxAttempts() int {
	return r.maxAttempts
}

// Invoke calls the wrapped capability until it succeeds, the attempts run
// out, or ctx is done. In-band response errors count as failures.
func (r *Retrying) Invoke(ctx context.Context, req Request) (Response, error) {
	delay := r.baseDelay
	var (
		resp Response
		err  error
	)
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		resp, err = r.inner.Invoke(ctx, req)
		if err == nil && resp.Error == "" {
			return resp, nil
		}
		if attempt == r.maxAttempts || ctx.Err() != nil {
			break
		}

		reason := resp.Error
		if err != nil {
			reason = err.Error()
		}
		log.Printf("[retry] agent %s: attempt %d/%d failed, retrying in %s: %s", r.name, attempt, r.maxAttempts, delay, reason)

		if serr := r.sleep(ctx, delay); serr != nil {
			return Response{}, serr
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	return resp, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Capability = (*Retrying)(nil)
