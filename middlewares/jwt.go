package middlewares

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/services"
)

// GetTokenFromAuthorizationHeader returns the token of a "Bearer <token>"
// header, or "" when there is none.
func GetTokenFromAuthorizationHeader(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// BearerAuthenticator resolves the Authorization header. A request that
// authenticates this way and has no session is put on the one session kept
// per token, so browsers holding a token end up on the cookie.
type BearerAuthenticator struct {
	tokens  *services.TokenAuthenticator
	cookies *services.CookieStore
	log     *logrus.Entry
}

func NewBearerAuthenticator(tokens *services.TokenAuthenticator, cookies *services.CookieStore, log *logrus.Entry) *BearerAuthenticator {
	return &BearerAuthenticator{tokens: tokens, cookies: cookies, log: log}
}

func (a *BearerAuthenticator) Authenticate(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	token := GetTokenFromAuthorizationHeader(r.Header.Get("Authorization"))
	if token == "" {
		return nil, nil
	}
	user, err := a.tokens.Resolve(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if a.cookies != nil {
		if err := a.cookies.EstablishFromToken(w, r, user.ID, token); err != nil {
			RequestLogger(r.Context(), a.log).WithError(err).WithField("user_id", user.ID).Warn("could not establish session from token")
		}
	}
	return user, nil
}
