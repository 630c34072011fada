package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRedisLimiter(t *testing.T, cfg RateLimitConfig, clock *fakeClock) *RedisRateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisRateLimiter(client, cfg)
	l.Now = clock.Now
	return l
}

func testLimiters(t *testing.T, cfg RateLimitConfig, clock *fakeClock) map[string]RateLimiter {
	mem := NewMemoryRateLimiter(cfg)
	mem.Now = clock.Now
	return map[string]RateLimiter{
		"memory": mem,
		"redis":  newTestRedisLimiter(t, cfg, clock),
	}
}

func TestRateLimiter_Window(t *testing.T) {
	cfg := RateLimitConfig{Limit: 3, Window: time.Minute, Prefix: "test"}
	for _, name := range []string{"memory", "redis"} {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := testLimiters(t, cfg, clock)[name]
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				d, err := l.Allow(ctx, "1.2.3.4")
				require.NoError(t, err)
				assert.True(t, d.Allowed)
				assert.Equal(t, 2-i, d.Remaining)
				clock.Advance(10 * time.Second)
			}

			d, err := l.Allow(ctx, "1.2.3.4")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 0, d.Remaining)
			assert.Equal(t, 40*time.Second, d.RetryAfter)

			// other keys are independent
			d, err = l.Allow(ctx, "5.6.7.8")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			// once the oldest attempts fall out the key is allowed again
			clock.Advance(41 * time.Second)
			d, err = l.Allow(ctx, "1.2.3.4")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		})
	}
}

func TestRateLimiter_RejectedAttemptsCount(t *testing.T) {
	cfg := RateLimitConfig{Limit: 2, Window: time.Minute, Prefix: "test"}
	for _, name := range []string{"memory", "redis"} {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			l := testLimiters(t, cfg, clock)[name]
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				l.Allow(ctx, "ip")
				clock.Advance(20 * time.Second)
			}
			// the last two attempts are still inside the window
			d, err := l.Allow(ctx, "ip")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
		})
	}
}

func TestMemoryRateLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryRateLimiter(RateLimitConfig{Limit: 1, Window: time.Minute})
	l.Now = clock.Now
	l.Allow(context.Background(), "a")
	clock.Advance(30 * time.Second)
	l.Allow(context.Background(), "b")
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.hits, 1)
}

func TestRedisRateLimiter_FailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := NewRedisRateLimiter(client, RateLimitConfig{Limit: 5, Window: time.Minute})
	mr.Close()

	_, err := l.Allow(context.Background(), "ip")
	assert.Error(t, err)
}
