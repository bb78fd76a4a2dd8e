// Package ratelimit bounds how many dispatch attempts may start per window.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter grants at most a fixed number of slots per key in any sliding
// window. Allow does not block; callers poll until granted.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config selects and parameterises a limiter.
type Config struct {
	Backend  string
	Limit    int
	Window   time.Duration
	RedisURL string
	// KeyPrefix namespaces Redis keys so several deployments can share a server.
	KeyPrefix string
}

// New builds the limiter named by cfg.Backend.
func New(ctx context.Context, cfg Config) (RateLimiter, error) {
	switch cfg.Backend {
	case BackendNone:
		return NoOpRateLimiter{}, nil
	case BackendMemory, "":
		return NewMemoryRateLimiter(cfg.Limit, cfg.Window)
	case BackendRedis:
		return NewRedisRateLimiter(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.Limit, cfg.Window)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q (want memory, redis or none)", cfg.Backend)
	}
}

func validate(limit int, window time.Duration) error {
	if limit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	return nil
}

// NoOpRateLimiter always allows.
type NoOpRateLimiter struct{}

func (NoOpRateLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (NoOpRateLimiter) Close() error { return nil }
