package services

import (
	"context"
	"time"

	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/models"
)

// LockoutStore runs a credential check under the per-account failure
// counter. Implementations must hold the counter for the whole check so
// concurrent logins of one account cannot see a stale count.
type LockoutStore interface {
	GuardLogin(ctx context.Context, userID uint, threshold int, lockFor time.Duration, now time.Time, check dbhelper.LoginCheck) (dbhelper.LoginOutcome, error)
}

type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// AttemptOutcome describes a login attempt made behind the lockout.
type AttemptOutcome struct {
	// Checked is false when the account was already locked.
	Checked           bool
	Matched           bool
	Locked            bool
	RetryAfter        time.Duration
	RemainingAttempts int
	CheckErr          error
}

// LockoutTracker locks an account for Duration once Threshold consecutive
// logins failed. A lock expires on its own; the next successful login
// resets the counter.
type LockoutTracker struct {
	store  LockoutStore
	policy LockoutPolicy
}

func NewLockoutTracker(store LockoutStore, policy LockoutPolicy) *LockoutTracker {
	return &LockoutTracker{store: store, policy: policy}
}

// Locked reports whether user is locked at now and for how much longer.
// user may be stale; Attempt is what enforces the lock.
func (t *LockoutTracker) Locked(user *models.User, now time.Time) (bool, time.Duration) {
	if user.LockedUntil == nil || !now.Before(*user.LockedUntil) {
		return false, 0
	}
	return true, user.LockedUntil.Sub(now)
}

// Attempt runs check unless the account is locked and books the result.
func (t *LockoutTracker) Attempt(ctx context.Context, userID uint, now time.Time, check dbhelper.LoginCheck) (AttemptOutcome, error) {
	res, err := t.store.GuardLogin(ctx, userID, t.policy.Threshold, t.policy.Duration, now, check)
	if err != nil {
		return AttemptOutcome{}, err
	}
	outcome := AttemptOutcome{Checked: res.Checked, Matched: res.Matched, CheckErr: res.CheckErr}
	if res.LockedUntil != nil && now.Before(*res.LockedUntil) {
		outcome.Locked = true
		outcome.RetryAfter = res.LockedUntil.Sub(now)
		return outcome, nil
	}
	outcome.RemainingAttempts = t.policy.Threshold - res.FailedAttempts
	if outcome.RemainingAttempts < 0 {
		outcome.RemainingAttempts = 0
	}
	return outcome, nil
}
