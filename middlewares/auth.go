package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

// ErrNoCredentials means the request carried neither a session nor a token.
var ErrNoCredentials = errors.New("no credentials")

// Authenticator resolves one kind of credential. It returns (nil, nil) when
// the request does not carry that kind at all.
type Authenticator interface {
	Authenticate(w http.ResponseWriter, r *http.Request) (*models.User, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// SessionAuthenticator resolves the session cookie and slides its expiry.
type SessionAuthenticator struct {
	cookies *services.CookieStore
	users   UserLookup
}

func NewSessionAuthenticator(cookies *services.CookieStore, users UserLookup) *SessionAuthenticator {
	return &SessionAuthenticator{cookies: cookies, users: users}
}

func (a *SessionAuthenticator) Authenticate(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	session, err := a.cookies.Get(r, services.SessionCookieName)
	if err != nil {
		return nil, err
	}
	userID, ok := services.SessionUserID(session)
	if session.IsNew || !ok {
		return nil, nil
	}
	user, err := a.users.GetUserByID(r.Context(), userID)
	if errors.Is(err, dbhelper.ErrNotFound) {
		// the account is gone, so is the session
		return nil, a.cookies.Clear(w, r)
	}
	if err != nil {
		return nil, err
	}
	if err := session.Save(r, w); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

type contextKey int

const userKey contextKey = iota

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// CurrentUser returns the user an auth middleware attached to ctx.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func CurrentUserID(ctx context.Context) (uint, bool) {
	user, ok := CurrentUser(ctx)
	if !ok {
		return 0, false
	}
	return user.ID, true
}

// AuthChain tries its authenticators in order and takes the first user.
// Sessions go first, so a request with both a cookie and a bearer token
// acts as the cookie's user.
type AuthChain struct {
	authenticators []Authenticator
	log            *logrus.Entry
}

func NewAuthChain(log *logrus.Entry, authenticators ...Authenticator) *AuthChain {
	return &AuthChain{authenticators: authenticators, log: log}
}

// Resolve returns the authenticated user or the first error met on the way.
// Errors never authenticate anybody.
func (c *AuthChain) Resolve(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	var firstErr error
	for _, a := range c.authenticators {
		user, err := a.Authenticate(w, r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if user != nil {
			return user, nil
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNoCredentials
}

// Optional attaches the user when there is one and lets every request through.
func (c *AuthChain) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := c.Resolve(w, r)
		if err != nil {
			if isStorageError(err) {
				RequestLogger(r.Context(), c.log).WithError(err).Warn("authentication failed")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Required rejects requests without a valid session or token.
func (c *AuthChain) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := c.Resolve(w, r)
		switch {
		case err == nil:
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		case errors.Is(err, services.ErrTokenExpired):
			utils.WriteError(w, http.StatusUnauthorized, utils.ErrorBody{
				Code:    string(services.KindTokenExpired),
				Message: utils.NOT_AUTHENTICATED_ERROR,
			})
		case isStorageError(err):
			RequestLogger(r.Context(), c.log).WithError(err).Error("authentication failed")
			utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrorBody{
				Code:    string(services.KindUnavailable),
				Message: utils.SERVER_DOWN,
			})
		default:
			utils.WriteError(w, http.StatusUnauthorized, utils.ErrorBody{
				Code:    string(services.KindNotAuthenticated),
				Message: utils.NOT_AUTHENTICATED_ERROR,
			})
		}
	})
}

func isStorageError(err error) bool {
	return !errors.Is(err, ErrNoCredentials) &&
		!errors.Is(err, services.ErrTokenExpired) &&
		!errors.Is(err, services.ErrTokenNotFound)
}
