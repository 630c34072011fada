package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string  `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash *string `gorm:"size:255"`
	Email        *string `gorm:"uniqueIndex;size:191"`
	DisplayName  string  `gorm:"size:128"`
	GoogleID     *string `gorm:"uniqueIndex;size:128"`

	AuthToken          *string `gorm:"type:text"`
	AuthTokenExpiresAt *time.Time

	FailedLoginAttempts int `gorm:"not null;default:0"`
	LockedUntil         *time.Time
}

// HasPassword is false for accounts created through OAuth only.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// PublicUser is the only shape of a user that leaves the server.
type PublicUser struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email"`
	DisplayName  string    `json:"displayName"`
	HasPassword  bool      `json:"hasPassword"`
	GoogleLinked bool      `json:"googleLinked"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		HasPassword:  u.HasPassword(),
		GoogleLinked: u.GoogleID != nil,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
