package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// backoff is a resolved RetryPolicy.
type backoff struct {
	attempts   int
	initial    time.Duration
	ceiling    time.Duration
	multiplier float64
	jitter     float64
}

// delay returns the wait before retry number attempt (0-based). A vendor's
// Retry-After hint wins when it asks for longer, up to the ceiling.
func (b backoff) delay(attempt int, err error) time.Duration {
	d := float64(b.initial) * math.Pow(b.multiplier, float64(attempt))
	d = min(d, float64(b.ceiling))
	if b.jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.jitter
	}
	wait := max(time.Duration(max(d, 0)), retryAfter(err))
	return min(wait, b.ceiling)
}

// retry calls fn until it succeeds, returns a permanent error, runs out of
// attempts, or ctx ends. An open breaker is permanent for this loop.
func retry[T any](ctx context.Context, b backoff, onRetry func(attempt int, err error), fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := range b.attempts {
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrVendorDown) || !IsTransient(err) {
			return zero, err
		}
		if attempt == b.attempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		t := time.NewTimer(b.delay(attempt, err))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
	return zero, err
}
