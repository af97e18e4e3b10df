// Package resilience keeps vendor calls (Trestle, Tracerfy, SignalHouse,
// Perplexity) from stalling a batch: transient failures are retried with
// backoff, a vendor that keeps failing is cut off for a cooldown, and leads
// that still fail land in the dead-letter queue.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the health of one vendor as seen by its breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown passes.
	BreakerOpen
	// BreakerProbing lets calls through to test whether the vendor recovered.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	}
	return "unknown"
}

// ErrVendorDown is returned without calling the vendor while its breaker is open.
var ErrVendorDown = eris.New("vendor circuit open")

// breaker counts consecutive transient failures for a single vendor.
// Permanent errors (bad phone, 4xx) never trip it.
type breaker struct {
	vendor    string
	threshold int
	cooldown  time.Duration
	onChange  func(vendor string, from, to BreakerState)
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

func newBreaker(vendor string, threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		vendor:    vendor,
		threshold: max(threshold, 1),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *breaker) current() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerProbing
	}
	return b.state
}

// admit reports whether a call may go out now.
func (b *breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return ErrVendorDown
	}
	b.set(BreakerProbing)
	return nil
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !IsTransient(err) {
		b.failures = 0
		if b.state == BreakerProbing {
			b.set(BreakerClosed)
		}
		return
	}

	b.failures++
	switch {
	case b.state == BreakerProbing:
		b.trip()
	case b.state == BreakerClosed && b.failures >= b.threshold:
		b.trip()
	}
}

func (b *breaker) trip() {
	b.openedAt = b.now()
	b.set(BreakerOpen)
}

func (b *breaker) set(to BreakerState) {
	from := b.state
	b.state = to
	if from != to && b.onChange != nil {
		b.onChange(b.vendor, from, to)
	}
}
