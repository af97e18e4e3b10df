package quota

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr         string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, eris.New("quota: redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "quota: redis ping")
	}
	return rdb, nil
}

// KEYS[1] = day counter, ARGV[1] = limit, ARGV[2] = ttl_ms.
// Returns the new count, or -1 when the limit was already reached.
var reserveScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
elseif redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return -1
end
return current
`)

// Redis is a Limiter shared across processes through a Redis counter per
// number per UTC day.
type Redis struct {
	rdb    redis.Scripter
	limit  int
	prefix string
	now    func() time.Time
}

// NewRedis wraps a connected client. An empty prefix defaults to "leadq:sms".
func NewRedis(rdb redis.Scripter, limit int, prefix string) *Redis {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if prefix == "" {
		prefix = "leadq:sms"
	}
	return &Redis{rdb: rdb, limit: limit, prefix: prefix, now: time.Now}
}

func (r *Redis) key(number string) string {
	return r.prefix + ":" + number + ":" + dayKey(r.now())
}

func (r *Redis) Reserve(ctx context.Context, number string) (int, error) {
	if number == "" {
		return 0, eris.New("quota: number is required")
	}
	n, err := reserveScript.Run(ctx, r.rdb, []string{r.key(number)}, r.limit, untilEndOfDay(r.now()).Milliseconds()).Int()
	if err != nil {
		return 0, eris.Wrap(err, "quota: reserve")
	}
	if n < 0 {
		return 0, eris.Wrapf(ErrExceeded, "number %s", number)
	}
	return r.limit - n, nil
}

func (r *Redis) Used(ctx context.Context, number string) (int, error) {
	getter, ok := r.rdb.(redis.StringCmdable)
	if !ok {
		return 0, eris.New("quota: client cannot read counters")
	}
	n, err := getter.Get(ctx, r.key(number)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, eris.Wrap(err, "quota: used")
}

func (r *Redis) Remaining(ctx context.Context, number string) (int, error) {
	used, err := r.Used(ctx, number)
	if err != nil {
		return 0, err
	}
	return max(r.limit-used, 0), nil
}
