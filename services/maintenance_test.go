package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/utils"
)

func TestJanitor_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")

	stale, err := env.sessions.Create(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.CreateResetToken(ctx, user.ID, utils.HashToken("old"), env.clock.Now().Add(time.Hour)))
	require.NoError(t, env.store.RecordLoginAttempt(ctx, &models.LoginAttempt{
		Username:    "alice",
		IPAddress:   "1.2.3.4",
		AttemptedAt: env.clock.Now(),
	}))

	env.clock.Advance(AttemptRetention + time.Hour)
	live, err := env.sessions.Create(ctx, user.ID)
	require.NoError(t, err)

	limiter := NewMemoryRateLimiter(RateLimitConfig{Limit: 1, Window: time.Minute})
	limiter.Now = env.clock.Now
	limiter.Allow(ctx, "1.2.3.4")
	env.clock.Advance(2 * time.Minute)

	janitor := NewJanitor(env.store, testLogger(), limiter)
	janitor.Now = env.clock.Now
	janitor.RunOnce(ctx)

	_, err = env.store.GetSession(ctx, stale.ID)
	assert.Error(t, err)
	_, err = env.store.GetSession(ctx, live.ID)
	assert.NoError(t, err)
	_, err = env.store.GetResetToken(ctx, utils.HashToken("old"))
	assert.Error(t, err)
	attempts, err := env.store.RecentLoginAttempts(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.Empty(t, limiter.hits)
}

type failingCleanup struct {
	calls int
}

func (f *failingCleanup) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	f.calls++
	return 0, errors.New("disk full")
}

func (f *failingCleanup) DeleteStaleResetTokens(context.Context, time.Time) (int64, error) {
	f.calls++
	return 2, nil
}

func (f *failingCleanup) DeleteLoginAttemptsBefore(context.Context, time.Time) (int64, error) {
	f.calls++
	return 0, nil
}

func TestJanitor_KeepsGoingAfterFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	store := &failingCleanup{}

	NewJanitor(store, logrus.NewEntry(log)).RunOnce(context.Background())

	assert.Equal(t, 3, store.calls)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.ErrorLevel, hook.Entries[0].Level)
	assert.Equal(t, "sessions", hook.Entries[0].Data["table"])
	assert.Equal(t, int64(2), hook.Entries[1].Data["deleted"])
}

func TestJanitor_Schedule(t *testing.T) {
	janitor := NewJanitor(&failingCleanup{}, testLogger())
	c := cron.New()

	assert.NoError(t, janitor.Schedule(c, DefaultCleanupSchedule))
	assert.Len(t, c.Entries(), 1)
	assert.Error(t, janitor.Schedule(c, "every now and then"))
}
