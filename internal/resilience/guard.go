package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Guard wraps vendor calls in a per-vendor breaker and retry loop.
// A nil *Guard calls straight through.
type Guard struct {
	retry     backoff
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewGuard builds a Guard from configuration policies.
func NewGuard(retry RetryPolicy, circuit CircuitPolicy) *Guard {
	threshold, cooldown := circuit.limits()
	return &Guard{
		retry:     retry.backoff(),
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*breaker),
	}
}

func (g *Guard) breaker(vendor string) *breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[vendor]
	if !ok {
		b = newBreaker(vendor, g.threshold, g.cooldown)
		b.onChange = logTransition
		g.breakers[vendor] = b
	}
	return b
}

// States reports the breaker state of every vendor called so far.
func (g *Guard) States() map[string]BreakerState {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]BreakerState, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.current()
	}
	return out
}

// Call runs fn for vendor under the guard. Every attempt passes through the
// vendor's breaker; once it opens the retry loop stops.
func Call[T any](ctx context.Context, g *Guard, vendor, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	b := g.breaker(vendor)
	onRetry := func(attempt int, err error) {
		zap.L().Warn("retrying vendor call",
			zap.String("vendor", vendor),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return retry(ctx, g.retry, onRetry, func(ctx context.Context) (T, error) {
		var zero T
		if err := b.admit(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		b.record(err)
		return v, err
	})
}

func logTransition(vendor string, from, to BreakerState) {
	zap.L().Warn("vendor breaker state change",
		zap.String("vendor", vendor),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
