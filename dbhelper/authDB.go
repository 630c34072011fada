package dbhelper

import (
	"context"
	"time"

	"github.com/whiskeyshelf/apiv1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockoutState is the per-account failure counter after an update.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LoginCheck verifies the presented password against the stored hash,
// which is nil for accounts without a password.
type LoginCheck func(passwordHash *string) (bool, error)

// LoginOutcome is the result of GuardLogin.
type LoginOutcome struct {
	LockoutState
	// Checked is false when the account was locked and the check never ran.
	Checked bool
	Matched bool
	// CheckErr is the error of the check itself. It counts as a failure.
	CheckErr error
}

// GuardLogin runs check with the user's lockout columns locked, so logins
// of one account verify one at a time and each one sees every earlier
// failure. check is skipped while the account is locked at now. A failing
// check increments the counter and reaching threshold locks the account for
// lockFor; failures never extend an active lock. A lock that has already
// run out restarts the count. A match clears the counter.
func (s *Store) GuardLogin(ctx context.Context, userID uint, threshold int, lockFor time.Duration, now time.Time, check LoginCheck) (LoginOutcome, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var outcome LoginOutcome
	err := db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "password_hash", "failed_login_attempts", "locked_until").
			First(&user, userID).Error
		if err != nil {
			return translate(err)
		}
		failed := user.FailedLoginAttempts
		lockedUntil := user.LockedUntil
		if lockedUntil != nil && !now.Before(*lockedUntil) {
			failed = 0
			lockedUntil = nil
		}
		if lockedUntil != nil {
			outcome.LockoutState = LockoutState{FailedAttempts: failed, LockedUntil: lockedUntil}
			return nil
		}

		outcome.Checked = true
		outcome.Matched, outcome.CheckErr = check(user.PasswordHash)
		if outcome.Matched && outcome.CheckErr == nil {
			if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
				return nil
			}
			return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
				"failed_login_attempts": 0,
				"locked_until":          nil,
			}).Error
		}
		outcome.Matched = false

		failed++
		if failed >= threshold {
			until := now.Add(lockFor)
			lockedUntil = &until
		}
		err = tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"failed_login_attempts": failed,
			"locked_until":          lockedUntil,
		}).Error
		if err != nil {
			return err
		}
		outcome.LockoutState = LockoutState{FailedAttempts: failed, LockedUntil: lockedUntil}
		return nil
	})
	if err != nil {
		return LoginOutcome{}, err
	}
	return outcome, nil
}

// CreateResetToken stores a new reset token hash and drops any earlier
// unused tokens of the same user, so only the latest mail works.
func (s *Store) CreateResetToken(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND used_at IS NULL", userID).Delete(&models.PasswordResetToken{}).Error
		if err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    userID,
			TokenHash: tokenHash,
			ExpiresAt: expiresAt,
		}).Error
	})
}

func (s *Store) GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var token models.PasswordResetToken
	if err := db.Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

// ConsumeResetToken marks the token used, replaces the password hash and
// revokes the bearer token in one transaction. It returns
// ErrInvalidResetToken when the token is unknown, expired or spent.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		var token models.PasswordResetToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", tokenHash).
			First(&token).Error
		if err != nil {
			if translate(err) == ErrNotFound {
				return ErrInvalidResetToken
			}
			return err
		}
		if !token.Usable(now) {
			return ErrInvalidResetToken
		}
		if err := tx.Model(&token).Update("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.First(&user, token.UserID).Error; err != nil {
			if translate(err) == ErrNotFound {
				return ErrInvalidResetToken
			}
			return err
		}
		return tx.Model(&user).Updates(map[string]any{
			"password_hash":         passwordHash,
			"auth_token":            nil,
			"auth_token_expires_at": nil,
			"failed_login_attempts": 0,
			"locked_until":          nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteStaleResetTokens removes tokens that can no longer be used.
func (s *Store) DeleteStaleResetTokens(ctx context.Context, now time.Time) (int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	result := db.Where("used_at IS NOT NULL OR expires_at <= ?", now).Delete(&models.PasswordResetToken{})
	return result.RowsAffected, result.Error
}
