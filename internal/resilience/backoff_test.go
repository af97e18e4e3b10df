package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	t.Parallel()

	b := RetryPolicy{}.backoff()
	assert.Equal(t, 3, b.attempts)
	assert.Equal(t, 500*time.Millisecond, b.initial)
	assert.Equal(t, 30*time.Second, b.ceiling)
	assert.Equal(t, 2.0, b.multiplier)
	assert.Zero(t, b.jitter)

	b = RetryPolicy{MaxAttempts: 5, InitialBackoffMs: 100, MaxBackoffMs: 1000, Multiplier: 3, JitterFraction: -1}.backoff()
	assert.Equal(t, 5, b.attempts)
	assert.Equal(t, 100*time.Millisecond, b.initial)
	assert.Equal(t, time.Second, b.ceiling)
	assert.Zero(t, b.jitter)
}

func TestBackoff_Delay(t *testing.T) {
	t.Parallel()

	b := backoff{attempts: 5, initial: 100 * time.Millisecond, ceiling: time.Second, multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, b.delay(0, nil))
	assert.Equal(t, 400*time.Millisecond, b.delay(2, nil))
	assert.Equal(t, time.Second, b.delay(6, nil))

	hinted := &TransientError{Err: errors.New("429"), StatusCode: 429, RetryAfter: 700 * time.Millisecond}
	assert.Equal(t, 700*time.Millisecond, b.delay(0, hinted))
	hinted.RetryAfter = time.Minute
	assert.Equal(t, time.Second, b.delay(0, hinted))

	b.jitter = 0.5
	for range 20 {
		d := b.delay(1, nil)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func quick(attempts int) backoff {
	return backoff{attempts: attempts, initial: time.Millisecond, ceiling: 2 * time.Millisecond, multiplier: 2}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()
		calls, retries := 0, 0
		got, err := retry(context.Background(), quick(4), func(int, error) { retries++ }, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errBusy
			}
			return "delivered", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "delivered", got)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := retry(context.Background(), quick(3), nil, func(context.Context) (int, error) {
			calls++
			return 0, errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := retry(context.Background(), quick(3), nil, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("invalid phone")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := retry(ctx, backoff{attempts: 5, initial: time.Hour, ceiling: time.Hour, multiplier: 1}, nil, func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 1, calls)
	})
}
