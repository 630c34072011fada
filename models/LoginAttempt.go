package models

import "time"

// Reasons recorded on failed login attempts.
const (
	AttemptReasonUnknownUser   = "unknown_user"
	AttemptReasonBadPassword   = "bad_password"
	AttemptReasonNoPassword    = "no_password"
	AttemptReasonLocked        = "locked"
	AttemptReasonInternalError = "internal_error"
)

// LoginAttempt is an audit row written for every login attempt.
type LoginAttempt struct {
	ID          uint      `gorm:"primaryKey"`
	Username    string    `gorm:"index;size:64"`
	UserID      *uint     `gorm:"index"`
	IPAddress   string    `gorm:"size:64"`
	Success     bool      `gorm:"not null"`
	Reason      string    `gorm:"size:32"`
	AttemptedAt time.Time `gorm:"index;not null"`
}

// PublicLoginAttempt is what a user sees of their own login history.
type PublicLoginAttempt struct {
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	IPAddress   string    `json:"ipAddress"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

func (a *LoginAttempt) Public() PublicLoginAttempt {
	return PublicLoginAttempt{
		Success:     a.Success,
		Reason:      a.Reason,
		IPAddress:   a.IPAddress,
		AttemptedAt: a.AttemptedAt,
	}
}
