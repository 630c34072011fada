package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrongPassword(*string) (bool, error) { return false, nil }

func TestLockoutTracker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")
	tracker := NewLockoutTracker(env.store, LockoutPolicy{Threshold: 3, Duration: 10 * time.Minute})

	for want := 2; want >= 1; want-- {
		outcome, err := tracker.Attempt(ctx, user.ID, env.clock.Now(), wrongPassword)
		require.NoError(t, err)
		assert.True(t, outcome.Checked)
		assert.False(t, outcome.Locked)
		assert.Equal(t, want, outcome.RemainingAttempts)
	}

	outcome, err := tracker.Attempt(ctx, user.ID, env.clock.Now(), wrongPassword)
	require.NoError(t, err)
	assert.True(t, outcome.Locked)
	assert.Equal(t, 10*time.Minute, outcome.RetryAfter)

	locked, err := env.store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	env.clock.Advance(4 * time.Minute)
	isLocked, remaining := tracker.Locked(locked, env.clock.Now())
	assert.True(t, isLocked)
	assert.Equal(t, 6*time.Minute, remaining)

	// a matching password is not even looked at while locked
	outcome, err = tracker.Attempt(ctx, user.ID, env.clock.Now(), func(*string) (bool, error) {
		t.Fatal("check ran while locked")
		return true, nil
	})
	require.NoError(t, err)
	assert.False(t, outcome.Checked)
	assert.True(t, outcome.Locked)
	assert.Equal(t, 6*time.Minute, outcome.RetryAfter)

	env.clock.Advance(6 * time.Minute)
	isLocked, _ = tracker.Locked(locked, env.clock.Now())
	assert.False(t, isLocked)

	outcome, err = tracker.Attempt(ctx, user.ID, env.clock.Now(), func(*string) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.True(t, outcome.Matched)
	cleared, err := env.store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, cleared.FailedLoginAttempts)
	assert.Nil(t, cleared.LockedUntil)
}
