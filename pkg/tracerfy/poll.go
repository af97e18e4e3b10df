package tracerfy

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 3 * time.Second
	defaultPollCap     = 15 * time.Second
	defaultPollTimeout = 60 * time.Second
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default timeout. It always applies, even
// when the parent context carries a later deadline.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// PollQueue polls GetQueues until the queue is done or the timeout expires.
// Uses exponential backoff: 3s -> 6s -> 12s -> 15s (capped).
func PollQueue(ctx context.Context, client Client, queueID int, opts ...PollOption) (*Queue, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	interval := cfg.initial
	for {
		queues, err := client.GetQueues(ctx)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("tracerfy: poll queue %d", queueID))
		}

		q, ok := findQueue(queues, queueID)
		if !ok {
			return nil, eris.Errorf("tracerfy: queue %d not found", queueID)
		}
		if q.Done() {
			return &q, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("tracerfy: poll queue %d timed out", queueID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}

// TraceAndWait submits records, waits for the queue and fetches its rows.
func TraceAndWait(ctx context.Context, client Client, records []TraceRecord, traceType TraceType, opts ...PollOption) (*TraceJobResponse, []TraceResult, error) {
	job, err := client.BeginTrace(ctx, records, traceType)
	if err != nil {
		return nil, nil, err
	}
	if _, err := PollQueue(ctx, client, job.QueueID, opts...); err != nil {
		return job, nil, err
	}
	results, err := client.GetQueueResults(ctx, job.QueueID)
	if err != nil {
		return job, nil, err
	}
	return job, results, nil
}

func findQueue(queues []Queue, id int) (Queue, bool) {
	for _, q := range queues {
		if q.ID == id {
			return q, true
		}
	}
	return Queue{}, false
}
