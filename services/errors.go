package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/whiskeyshelf/apiv1/utils"
)

// ErrorKind is the outcome class of a failed auth operation. The HTTP layer
// maps kinds onto status codes.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation_error"
	KindUsernameTaken         ErrorKind = "username_taken"
	KindEmailTaken            ErrorKind = "email_taken"
	KindWeakPassword          ErrorKind = "weak_password"
	KindInvalidCredentials    ErrorKind = "invalid_credentials"
	KindAccountLocked         ErrorKind = "account_locked"
	KindRateLimited           ErrorKind = "rate_limited"
	KindNotAuthenticated      ErrorKind = "not_authenticated"
	KindTokenExpired          ErrorKind = "token_expired"
	KindIncorrectPassword     ErrorKind = "incorrect_password"
	KindNoPasswordSet         ErrorKind = "no_password_set"
	KindInvalidOrExpiredToken ErrorKind = "invalid_or_expired_token"
	KindUnavailable           ErrorKind = "service_unavailable"
	KindInternal              ErrorKind = "internal_error"
)

type AuthError struct {
	Kind    ErrorKind
	Message string
	// RemainingAttempts is set on InvalidCredentials only when few are left.
	RemainingAttempts *int
	// RetryAfter is set on AccountLocked and RateLimited.
	RetryAfter time.Duration
	Fields     map[string]string
	// Err is the internal cause. It is logged, never sent to clients.
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

func internalError(op string, err error) *AuthError {
	return &AuthError{
		Kind:    KindInternal,
		Message: utils.SERVER_DOWN,
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

func validationError(fields map[string]string) *AuthError {
	return &AuthError{
		Kind:    KindValidation,
		Message: "One or more fields failed validation",
		Fields:  fields,
	}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}
