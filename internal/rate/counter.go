package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the injectable counting store behind [Limiter]. Incr must be
// atomic per key: concurrent callers sharing a key observe a consistent,
// monotonically increasing count within one window. Implementations expire
// counters on their own; stale windows are treated as absent.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, keys ...string) error
}

// RedisCounter counts in Redis: INCR plus EXPIRE on the first hit in the
// window. Safe for multi-instance deployments sharing one Redis.
type RedisCounter struct {
	redis redis.UniversalClient
}

// NewRedisCounter creates a [Counter] backed by the given Redis client.
func NewRedisCounter(redisClient redis.UniversalClient) *RedisCounter {
	return &RedisCounter{redis: redisClient}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return count, nil
}

func (c *RedisCounter) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
