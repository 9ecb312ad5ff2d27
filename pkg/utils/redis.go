package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior. Zero values fall back to the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	ConnMaxIdleTime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	return c
}

// OpenRedis builds a client and fails fast when the server does not answer PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err := PingRedis(ctx, rdb, cfg.PingTimeout); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// PingRedis checks connectivity with a bounded PING.
func PingRedis(ctx context.Context, rdb redis.Cmdable, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// KEYS[1] counter, ARGV[1] limit, ARGV[2] ttl in ms. Returns 1 when a slot was taken.
var capAcquireScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var capReleaseScript = redis.NewScript(`
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return current
`)

// ConcurrencyCap bounds how many holders of the same key may be in flight across
// every process sharing the redis instance. The TTL bounds how long a slot leaked
// by a crashed process can stay taken.
type ConcurrencyCap struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	ttl    time.Duration
}

func NewConcurrencyCap(rdb redis.Scripter, prefix string, limit int, ttl time.Duration) (*ConcurrencyCap, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be > 0")
	}
	return &ConcurrencyCap{rdb: rdb, prefix: prefix, limit: limit, ttl: ttl}, nil
}

func (c *ConcurrencyCap) key(k string) string {
	return c.prefix + k
}

// Acquire takes a slot for key. It returns false, nil when the cap is reached.
func (c *ConcurrencyCap) Acquire(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key is required")
	}
	res, err := capAcquireScript.Run(ctx, c.rdb, []string{c.key(key)}, c.limit, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Release gives back a slot taken by Acquire.
func (c *ConcurrencyCap) Release(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return capReleaseScript.Run(ctx, c.rdb, []string{c.key(key)}).Err()
}
