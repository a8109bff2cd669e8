package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/logging"
)

// RedisCounter is the subset of the go-redis client the shared limiter uses.
type RedisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisRateLimiter counts events per key in fixed windows stored in Redis, so
// every service instance shares the same budget. When Redis cannot be reached the
// limiter lets the request through and logs a warning.
type RedisRateLimiter struct {
	client   RedisCounter
	requests int64
	window   time.Duration
	prefix   string
}

// NewRedisRateLimiter allows up to requests events per window for each key.
func NewRedisRateLimiter(client RedisCounter, requests int, window time.Duration) *RedisRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{client: client, requests: int64(requests), window: window, prefix: "vidtube:ratelimit:"}
}

// Allow consumes one event for key.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if key == "" {
		key = "unknown"
	}
	key = l.prefix + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logging.FromContext(ctx).Warn("rate limiter unavailable, allowing request", "error", err)
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			logging.FromContext(ctx).Warn("rate limiter window not set", "key", key, "error", err)
		}
	}
	return count <= l.requests
}
