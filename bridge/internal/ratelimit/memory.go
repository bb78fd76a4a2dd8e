package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter is a sliding-window log kept in process memory. A grant
// at time t occupies a slot while t > now-window, so any interval of length
// window contains at most limit grants.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	grants map[string][]time.Time
	now    func() time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) (*MemoryRateLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	return &MemoryRateLimiter{
		limit:  limit,
		window: window,
		grants: make(map[string][]time.Time),
		now:    time.Now,
	}, nil
}

func (m *MemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	log := m.grants[key]
	expired := 0
	for expired < len(log) && !log[expired].After(cutoff) {
		expired++
	}
	log = log[expired:]

	if len(log) >= m.limit {
		m.grants[key] = log
		return false, nil
	}
	m.grants[key] = append(log, now)
	return true, nil
}

func (m *MemoryRateLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.grants)
	return nil
}
