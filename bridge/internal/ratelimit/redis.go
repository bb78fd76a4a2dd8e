package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims grants at or before window_start, then records a
// new grant if fewer than limit remain. Scores are microseconds; members are
// unique so concurrent grants in the same microsecond are all counted.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl_ms = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, ttl_ms)
	return 1
end
return 0
`)

// RedisRateLimiter applies the sliding window in Redis so every bridge
// replica draws from the same budget.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisRateLimiter connects to redisURL and verifies the connection.
func NewRedisRateLimiter(ctx context.Context, redisURL, prefix string, limit int, window time.Duration) (*RedisRateLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisRateLimiterFromClient(client, prefix, limit, window)
}

// NewRedisRateLimiterFromClient wraps an existing client. The limiter takes
// ownership and closes it on Close.
func NewRedisRateLimiterFromClient(client *redis.Client, prefix string, limit int, window time.Duration) (*RedisRateLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "relay:ratelimit:"
	}
	return &RedisRateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixMicro()
	windowStart := now - r.window.Microseconds()
	ttl := (2 * r.window).Milliseconds()

	res, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.prefix + key},
		now, windowStart, r.limit, uuid.NewString(), ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}
