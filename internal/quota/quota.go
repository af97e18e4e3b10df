// Package quota enforces the daily outbound SMS allowance per sending number.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultDailyLimit is the carrier allowance for a single 10DLC number.
const DefaultDailyLimit = 2000

// ErrExceeded is returned (wrapped) when a number has used its daily allowance.
var ErrExceeded = eris.New("quota: daily send limit reached")

// Limiter reserves sends against a per-number daily counter.
type Limiter interface {
	// Reserve consumes one send for number. It returns ErrExceeded when the
	// number is already at its limit; the counter is not advanced in that case.
	Reserve(ctx context.Context, number string) (remaining int, err error)
	// Used reports how many sends number has made today.
	Used(ctx context.Context, number string) (int, error)
	// Remaining reports how many sends number has left today without
	// consuming any.
	Remaining(ctx context.Context, number string) (int, error)
}

// Config selects the quota backend.
type Config struct {
	DailyLimit int    `yaml:"daily_limit" mapstructure:"daily_limit"`
	RedisAddr  string `yaml:"redis_addr" mapstructure:"redis_addr"`
	KeyPrefix  string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Open returns a Redis-backed limiter when an address is configured and an
// in-process one otherwise.
func Open(ctx context.Context, cfg Config) (Limiter, func() error, error) {
	if cfg.RedisAddr == "" {
		return NewMemory(cfg.DailyLimit), func() error { return nil }, nil
	}
	rdb, err := OpenRedis(ctx, RedisConfig{Addr: cfg.RedisAddr})
	if err != nil {
		return nil, nil, err
	}
	return NewRedis(rdb, cfg.DailyLimit, cfg.KeyPrefix), rdb.Close, nil
}

// dayKey buckets by UTC calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// untilEndOfDay is the TTL for a day bucket, padded so late reads still see it.
func untilEndOfDay(t time.Time) time.Duration {
	t = t.UTC()
	end := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
	return end.Sub(t) + time.Hour
}

// Memory is an in-process Limiter. Counters are lost on restart.
type Memory struct {
	limit int
	now   func() time.Time

	mu     sync.Mutex
	counts map[string]int
}

// NewMemory creates an in-process limiter. A non-positive limit uses
// DefaultDailyLimit.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Memory{limit: limit, now: time.Now, counts: make(map[string]int)}
}

func (m *Memory) Reserve(_ context.Context, number string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := number + ":" + dayKey(m.now())
	if m.counts[key] >= m.limit {
		return 0, eris.Wrapf(ErrExceeded, "number %s", number)
	}
	m.counts[key]++
	return m.limit - m.counts[key], nil
}

func (m *Memory) Used(_ context.Context, number string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[number+":"+dayKey(m.now())], nil
}

func (m *Memory) Remaining(_ context.Context, number string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return max(m.limit-m.counts[number+":"+dayKey(m.now())], 0), nil
}
