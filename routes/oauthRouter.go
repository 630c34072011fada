package routes

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/whiskeyshelf/apiv1/config"
	"github.com/whiskeyshelf/apiv1/middlewares"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

const oauthStateCookie = "whiskeyshelf_oauth"

// OAuthStateStore keeps the state of a pending authorization in a short
// lived signed cookie.
type OAuthStateStore struct {
	store sessions.Store
	// RedirectTo is where the browser lands after signing in.
	RedirectTo string
}

func NewOAuthStateStore(profile config.DeploymentProfile, redirectTo string, keyPairs ...[]byte) *OAuthStateStore {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/api/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   profile == config.Production,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(600)
	return &OAuthStateStore{store: store, RedirectTo: redirectTo}
}

func (h *Handlers) OAuthRouter(s *mux.Router) {
	s.HandleFunc("", h.GoogleRedirect).Methods("GET")
	s.HandleFunc("/callback", h.GoogleCallback).Methods("GET")
}

func (h *Handlers) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	session, _ := h.OAuth.store.Get(r, oauthStateCookie)
	state := utils.RandomToken(24)
	session.Values["state"] = state
	if err := session.Save(r, w); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	http.Redirect(w, r, h.Google.AuthURL(state), http.StatusFound)
}

func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	session, _ := h.OAuth.store.Get(r, oauthStateCookie)
	expected, _ := session.Values["state"].(string)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		middlewares.RequestLogger(r.Context(), h.Log).WithError(err).Warn("could not clear oauth state cookie")
	}

	got := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if expected == "" || code == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		WriteAuthError(w, r, h.Log, &services.AuthError{Kind: services.KindNotAuthenticated, Message: utils.NOT_AUTHENTICATED_ERROR})
		return
	}
	identity, err := h.Google.Exchange(r.Context(), code)
	if err != nil {
		middlewares.RequestLogger(r.Context(), h.Log).WithError(err).Warn("google sign-in failed")
		WriteAuthError(w, r, h.Log, &services.AuthError{Kind: services.KindNotAuthenticated, Message: utils.NOT_AUTHENTICATED_ERROR})
		return
	}
	result, err := h.Auth.LoginWithGoogle(r.Context(), identity)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Cookies.Establish(w, r, result.User.ID); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if h.OAuth.RedirectTo != "" {
		http.Redirect(w, r, h.OAuth.RedirectTo, http.StatusFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, authResponse{User: result.User.Public(), Token: result.Token})
}
