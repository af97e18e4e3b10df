package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testBreaker(threshold int) (*breaker, *fakeClock, *[]string) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	var changes []string
	b := newBreaker("tracerfy", threshold, time.Minute)
	b.now = clock.now
	b.onChange = func(vendor string, from, to BreakerState) {
		changes = append(changes, vendor+":"+from.String()+"->"+to.String())
	}
	return b, clock, &changes
}

var errBusy = NewTransientError(errors.New("tracerfy: 503"), 503)

func TestBreaker_TripsOnConsecutiveTransientFailures(t *testing.T) {
	t.Parallel()

	b, _, changes := testBreaker(3)
	b.record(errBusy)
	b.record(errBusy)
	b.record(nil)
	b.record(errBusy)
	b.record(errBusy)
	assert.Equal(t, BreakerClosed, b.current())

	b.record(errBusy)
	assert.Equal(t, BreakerOpen, b.current())
	assert.ErrorIs(t, b.admit(), ErrVendorDown)
	assert.Equal(t, []string{"tracerfy:closed->open"}, *changes)
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	b, _, _ := testBreaker(1)
	for range 5 {
		b.record(errors.New("tracerfy: 400 missing address"))
	}
	assert.Equal(t, BreakerClosed, b.current())
	assert.NoError(t, b.admit())
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		probe  error
		want   BreakerState
		change string
	}{
		{name: "recovered", probe: nil, want: BreakerClosed, change: "tracerfy:probing->closed"},
		{name: "still down", probe: errBusy, want: BreakerOpen, change: "tracerfy:probing->open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, clock, changes := testBreaker(1)
			b.record(errBusy)
			require.ErrorIs(t, b.admit(), ErrVendorDown)

			clock.advance(time.Minute)
			assert.Equal(t, BreakerProbing, b.current())
			require.NoError(t, b.admit())

			b.record(tt.probe)
			assert.Equal(t, tt.want, b.current())
			assert.Equal(t, tt.change, (*changes)[len(*changes)-1])
		})
	}
}

func TestBreakerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "probing", BreakerProbing.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
