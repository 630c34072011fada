package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type PasswordResetMail struct {
	To        string
	Username  string
	Link      string
	ExpiresAt time.Time
}

// Mailer delivers auth mails. Real delivery lives outside this service.
type Mailer interface {
	SendPasswordReset(ctx context.Context, mail PasswordResetMail) error
}

// LogMailer writes mails to the log instead of sending them. It is the
// mailer of the local profile.
type LogMailer struct {
	Log *logrus.Entry
}

func (m LogMailer) SendPasswordReset(_ context.Context, mail PasswordResetMail) error {
	m.Log.WithFields(logrus.Fields{
		"to":         mail.To,
		"username":   mail.Username,
		"expires_at": mail.ExpiresAt,
	}).Infof("password reset link: %s", mail.Link)
	return nil
}
