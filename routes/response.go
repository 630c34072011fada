package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/middlewares"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

const maxBodyBytes = 1 << 16

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:            http.StatusBadRequest,
	services.KindUsernameTaken:         http.StatusBadRequest,
	services.KindEmailTaken:            http.StatusBadRequest,
	services.KindWeakPassword:          http.StatusBadRequest,
	services.KindInvalidOrExpiredToken: http.StatusBadRequest,
	services.KindNoPasswordSet:         http.StatusBadRequest,
	services.KindInvalidCredentials:    http.StatusUnauthorized,
	services.KindNotAuthenticated:      http.StatusUnauthorized,
	services.KindTokenExpired:          http.StatusUnauthorized,
	services.KindIncorrectPassword:     http.StatusUnauthorized,
	services.KindAccountLocked:         http.StatusLocked,
	services.KindRateLimited:           http.StatusTooManyRequests,
	services.KindUnavailable:           http.StatusServiceUnavailable,
	services.KindInternal:              http.StatusInternalServerError,
}

type RequestBody interface {
	services.RegisterInput |
		services.LoginInput |
		services.ProfileInput |
		services.ChangePasswordInput |
		services.ForgotPasswordInput |
		services.ResetPasswordInput |
		services.UnlinkInput |
		services.DeleteAccountInput
}

// DecodeBody reads a JSON request body into B. Validation is left to the
// service, which knows which failures are which kind.
func DecodeBody[B RequestBody](w http.ResponseWriter, r *http.Request) (B, error) {
	var requestBody B
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&requestBody); err != nil {
		return requestBody, &services.AuthError{
			Kind:    services.KindValidation,
			Message: "The request body is not valid JSON.",
			Fields:  map[string]string{"body": "invalid JSON"},
		}
	}
	return requestBody, nil
}

// WriteAuthError renders err in the error envelope. Errors that are not an
// AuthError are internal and only their kind reaches the client.
func WriteAuthError(w http.ResponseWriter, r *http.Request, log *logrus.Entry, err error) {
	var authErr *services.AuthError
	if !errors.As(err, &authErr) {
		authErr = &services.AuthError{Kind: services.KindInternal, Message: utils.SERVER_DOWN, Err: err}
	}
	status, ok := kindStatus[authErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		entry := middlewares.RequestLogger(r.Context(), log).WithError(err)
		if userID, ok := middlewares.CurrentUserID(r.Context()); ok {
			entry = entry.WithField("user_id", userID)
		}
		entry.Error("request failed")
	}

	body := utils.ErrorBody{Code: string(authErr.Kind), Message: authErr.Message}
	switch {
	case authErr.Kind == services.KindAccountLocked:
		seconds := services.Seconds(authErr.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		body.Details = map[string]int{"lockedUntil": seconds}
	case authErr.RemainingAttempts != nil:
		body.Details = map[string]int{"remainingAttempts": *authErr.RemainingAttempts}
	case len(authErr.Fields) > 0:
		body.Details = authErr.Fields
	}
	utils.WriteError(w, status, body)
}

type messageResponse struct {
	Message string `json:"message"`
}
