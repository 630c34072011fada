package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the result of a rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts attempts per key in a sliding window. Every call is
// recorded, rejected ones included, so hammering a limited key keeps it
// limited.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type RateLimitConfig struct {
	// Limit is the number of attempts allowed inside Window.
	Limit  int
	Window time.Duration
	// Prefix separates independent limiters sharing one backend.
	Prefix string
}

func decide(cfg RateLimitConfig, count int, oldest, now time.Time) Decision {
	d := Decision{
		Allowed: count <= cfg.Limit,
		Limit:   cfg.Limit,
	}
	if d.Allowed {
		d.Remaining = cfg.Limit - count
		return d
	}
	d.RetryAfter = oldest.Add(cfg.Window).Sub(now)
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d
}

// MemoryRateLimiter keeps windows in process memory. Only the newest Limit
// timestamps of a key matter for the decision, so that is all it keeps.
type MemoryRateLimiter struct {
	config RateLimitConfig
	Now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryRateLimiter(config RateLimitConfig) *MemoryRateLimiter {
	if config.Limit < 1 {
		config.Limit = 1
	}
	return &MemoryRateLimiter{
		config: config,
		Now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.Now()
	k := l.config.Prefix + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := pruneHits(l.hits[k], now.Add(-l.config.Window))
	hits = append(hits, now)
	count := len(hits)
	if len(hits) > l.config.Limit {
		hits = hits[len(hits)-l.config.Limit:]
	}
	l.hits[k] = hits
	return decide(l.config, count, hits[0], now), nil
}

// Sweep drops keys whose window has fully passed.
func (l *MemoryRateLimiter) Sweep() int {
	windowStart := l.Now().Add(-l.config.Window)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, hits := range l.hits {
		if len(pruneHits(hits, windowStart)) == 0 {
			delete(l.hits, k)
			removed++
		}
	}
	return removed
}

func pruneHits(hits []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(windowStart) {
		i++
	}
	return append([]time.Time(nil), hits[i:]...)
}

// RedisRateLimiter keeps each window in a sorted set scored by timestamp,
// so every server instance shares the same counts.
type RedisRateLimiter struct {
	client redis.UniversalClient
	config RateLimitConfig
	Now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient, config RateLimitConfig) *RedisRateLimiter {
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	if config.Limit < 1 {
		config.Limit = 1
	}
	return &RedisRateLimiter{client: client, config: config, Now: time.Now}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.Now()
	redisKey := fmt.Sprintf("%s:%s", l.config.Prefix, key)
	windowStart := now.Add(-l.config.Window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart.UnixMicro(), 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMicro()),
		Member: fmt.Sprintf("%d:%s", now.UnixMicro(), uuid.NewString()),
	})
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZRemRangeByRank(ctx, redisKey, 0, -int64(l.config.Limit)-1)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", l.config.Prefix, err)
	}

	oldestAt := now
	if z := oldest.Val(); len(z) > 0 {
		oldestAt = time.UnixMicro(int64(z[0].Score))
	}
	return decide(l.config, int(card.Val()), oldestAt, now), nil
}
