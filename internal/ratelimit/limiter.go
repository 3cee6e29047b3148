// Package ratelimit implements a fixed-window request limiter backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Decision is the outcome of one Allow call. RetryAfter is set only when the request was
// rejected.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

type Config struct {
	Requests  int64
	Window    time.Duration
	KeyPrefix string
}

func DefaultConfig() *Config {
	return &Config{
		Requests:  60,
		Window:    time.Minute,
		KeyPrefix: "ratelimit:validate",
	}
}

func (c *Config) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("requests must be positive")
	}
	if c.Window < time.Millisecond {
		return fmt.Errorf("window must be at least 1ms")
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter counts requests per key with INCR and expires the counter when the window
// closes. The first request of a window starts it.
type RedisLimiter struct {
	client redis.Cmdable
	config *Config
}

func NewRedisLimiter(client redis.Cmdable, config *Config) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit configuration: %w", err)
	}
	return &RedisLimiter{client: client, config: config}, nil
}

func (l *RedisLimiter) key(key string) string {
	if l.config.KeyPrefix == "" {
		return key
	}
	return l.config.KeyPrefix + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.key(key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr %s: %w", redisKey, err)
	}

	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("pexpire %s: %w", redisKey, err)
		}
	}

	decision := Decision{
		Allowed: count <= l.config.Requests,
		Count:   count,
		Limit:   l.config.Requests,
	}
	if decision.Allowed {
		return decision, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("pttl %s: %w", redisKey, err)
	}
	if ttl < 0 {
		// The counter lost its expiry; start a new window so the key cannot block forever.
		if err := l.client.PExpire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("pexpire %s: %w", redisKey, err)
		}
		ttl = l.config.Window
	}
	decision.RetryAfter = ttl

	return decision, nil
}
