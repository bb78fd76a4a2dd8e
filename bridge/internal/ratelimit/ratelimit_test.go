package ratelimit

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewRedisRateLimiterFromClient(client, "test:", limit, window)
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter, mr
}

// limiterUnderTest lets the same behavioural tests run against both backends.
type limiterUnderTest struct {
	name    string
	limiter RateLimiter
	clock   *fakeClock
}

func backends(t *testing.T, limit int, window time.Duration) []limiterUnderTest {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	memClock := &fakeClock{t: start}
	mem, err := NewMemoryRateLimiter(limit, window)
	require.NoError(t, err)
	mem.now = memClock.now

	redisClock := &fakeClock{t: start}
	rl, _ := newRedisLimiter(t, limit, window)
	rl.now = redisClock.now

	return []limiterUnderTest{
		{name: "memory", limiter: mem, clock: memClock},
		{name: "redis", limiter: rl, clock: redisClock},
	}
}

func TestAllow_BurstCappedAtLimit(t *testing.T) {
	for _, b := range backends(t, 5, time.Second) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			granted := 0
			for i := 0; i < 12; i++ {
				ok, err := b.limiter.Allow(ctx, "dispatch")
				require.NoError(t, err)
				if ok {
					granted++
				}
			}
			assert.Equal(t, 5, granted)
		})
	}
}

func TestAllow_WindowSlides(t *testing.T) {
	for _, b := range backends(t, 5, time.Second) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				ok, err := b.limiter.Allow(ctx, "dispatch")
				require.NoError(t, err)
				require.True(t, ok)
				b.clock.advance(100 * time.Millisecond)
			}
			// t=500ms: window still holds five grants
			ok, err := b.limiter.Allow(ctx, "dispatch")
			require.NoError(t, err)
			assert.False(t, ok)

			// t=999ms: the first grant (t=0) is still inside (t > now-W)
			b.clock.advance(499 * time.Millisecond)
			ok, _ = b.limiter.Allow(ctx, "dispatch")
			assert.False(t, ok)

			// t=1000ms: the first grant leaves the window, one slot frees up
			b.clock.advance(time.Millisecond)
			ok, _ = b.limiter.Allow(ctx, "dispatch")
			assert.True(t, ok)
			ok, _ = b.limiter.Allow(ctx, "dispatch")
			assert.False(t, ok)
		})
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	for _, b := range backends(t, 1, time.Second) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			ok, _ := b.limiter.Allow(ctx, "a")
			assert.True(t, ok)
			ok, _ = b.limiter.Allow(ctx, "b")
			assert.True(t, ok)
			ok, _ = b.limiter.Allow(ctx, "a")
			assert.False(t, ok)
		})
	}
}

// No interval of length W may contain more than N grants, whatever the
// request pattern.
func TestAllow_SlidingWindowProperty(t *testing.T) {
	const limit = 5
	const window = time.Second

	for _, b := range backends(t, limit, window) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			var granted []time.Time

			steps := []time.Duration{0, 0, 1, 3, 7, 50, 90, 130, 0, 0, 200, 333, 10, 10, 10, 480, 5, 0, 999, 1, 1, 250, 250, 250, 250, 1000}
			for round := 0; round < 4; round++ {
				for _, step := range steps {
					b.clock.advance(step * time.Millisecond)
					for burst := 0; burst < 3; burst++ {
						ok, err := b.limiter.Allow(ctx, "dispatch")
						require.NoError(t, err)
						if ok {
							granted = append(granted, b.clock.now())
						}
					}
				}
			}

			require.NotEmpty(t, granted)
			sort.Slice(granted, func(i, j int) bool { return granted[i].Before(granted[j]) })
			for i := limit; i < len(granted); i++ {
				gap := granted[i].Sub(granted[i-limit])
				assert.GreaterOrEqual(t, gap, window,
					"grants %d and %d are %s apart; %d grants fit in one window", i-limit, i, gap, limit+1)
			}
		})
	}
}

func TestAllow_CanceledContext(t *testing.T) {
	mem, err := NewMemoryRateLimiter(1, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mem.Allow(ctx, "dispatch")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisRateLimiter_KeyHasTTL(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 5, time.Second)

	ok, err := limiter.Allow(context.Background(), "dispatch")
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, mr.Exists("test:dispatch"))
	assert.Equal(t, 2*time.Second, mr.TTL("test:dispatch"))

	mr.FastForward(3 * time.Second)
	assert.False(t, mr.Exists("test:dispatch"))
}

func TestRedisRateLimiter_ServerDown(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 5, time.Second)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "dispatch")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter(context.Background(), "not-a-valid-url", "", 5, time.Second)
	assert.Error(t, err)
}

func TestNewRedisRateLimiter_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := NewRedisRateLimiter(context.Background(), "redis://"+mr.Addr(), "", 5, time.Second)
	require.NoError(t, err)
	defer limiter.Close()

	ok, err := limiter.Allow(context.Background(), "dispatch")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("relay:ratelimit:dispatch"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{Limit: 5, Window: time.Second}, want: &MemoryRateLimiter{}},
		{name: "memory", cfg: Config{Backend: BackendMemory, Limit: 5, Window: time.Second}, want: &MemoryRateLimiter{}},
		{name: "none", cfg: Config{Backend: BackendNone}, want: NoOpRateLimiter{}},
		{name: "zero limit", cfg: Config{Backend: BackendMemory, Window: time.Second}, wantErr: true},
		{name: "zero window", cfg: Config{Backend: BackendMemory, Limit: 5}, wantErr: true},
		{name: "unknown backend", cfg: Config{Backend: "etcd", Limit: 5, Window: time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, limiter)
		})
	}
}

func TestNoOpRateLimiter(t *testing.T) {
	var limiter NoOpRateLimiter
	for i := 0; i < 100; i++ {
		ok, err := limiter.Allow(context.Background(), "any")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.NoError(t, limiter.Close())
}
