package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/whiskeyshelf/apiv1/middlewares"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

func (h *Handlers) AuthRouter(s *mux.Router) {
	loginLimit := middlewares.RateLimit("login", h.LoginLimiter, h.Log)
	resetLimit := middlewares.RateLimit("password_reset", h.ResetLimiter, h.Log)

	s.HandleFunc("/register", h.Register).Methods("POST")
	s.Handle("/login", loginLimit(http.HandlerFunc(h.Login))).Methods("POST")
	s.Handle("/logout", h.Chain.Optional(http.HandlerFunc(h.Logout))).Methods("POST")
	s.Handle("/auth/forgot-password", resetLimit(http.HandlerFunc(h.ForgotPassword))).Methods("POST")
	s.HandleFunc("/auth/reset-password/validate", h.ValidateResetToken).Methods("GET")
	s.Handle("/auth/reset-password", resetLimit(http.HandlerFunc(h.ResetPassword))).Methods("POST")
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeBody[services.RegisterInput](w, r)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	result, err := h.Auth.Register(r.Context(), in)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Cookies.Establish(w, r, result.User.ID); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, authResponse{User: result.User.Public(), Token: result.Token})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeBody[services.LoginInput](w, r)
	if err != nil {
		middlewares.ObserveLogin(string(services.KindValidation))
		WriteAuthError(w, r, h.Log, err)
		return
	}
	in.IPAddress = middlewares.ClientIP(r)
	result, err := h.Auth.Login(r.Context(), in)
	if err != nil {
		middlewares.ObserveLogin(string(services.KindOf(err)))
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Cookies.Establish(w, r, result.User.ID); err != nil {
		middlewares.ObserveLogin(string(services.KindInternal))
		WriteAuthError(w, r, h.Log, err)
		return
	}
	middlewares.ObserveLogin("success")
	utils.WriteJSON(w, http.StatusOK, authResponse{User: result.User.Public(), Token: result.Token})
}

// Logout always succeeds for the client. The session goes in any case and
// the bearer token too when the caller was authenticated.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	log := middlewares.RequestLogger(r.Context(), h.Log)
	if userID, ok := middlewares.CurrentUserID(r.Context()); ok {
		if err := h.Auth.Logout(r.Context(), userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("could not revoke token on logout")
		}
	}
	if err := h.Cookies.Clear(w, r); err != nil {
		log.WithError(err).Error("could not destroy session on logout")
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: utils.LOGGED_OUT})
}

// ForgotPassword answers the same way whether or not the email is known.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeBody[services.ForgotPasswordInput](w, r)
	if err == nil {
		h.Auth.ForgotPassword(r.Context(), in)
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: utils.PASSWORD_RESET_REQUESTED})
}

func (h *Handlers) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	status, err := h.Auth.ValidateResetToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeBody[services.ResetPasswordInput](w, r)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Auth.ResetPassword(r.Context(), in); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: utils.PASSWORD_RESET_DONE})
}
