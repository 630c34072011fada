package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/whiskeyshelf/apiv1/middlewares"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

// UserRouter serves the signed in user's own account. Every route needs
// a session or a bearer token.
func (h *Handlers) UserRouter(s *mux.Router) {
	s.Use(h.Chain.Required)
	s.HandleFunc("", h.GetUser).Methods("GET")
	s.HandleFunc("", h.UpdateUser).Methods("PATCH")
	s.HandleFunc("", h.DeleteUser).Methods("DELETE")
	s.HandleFunc("/login-history", h.LoginHistory).Methods("GET")
	s.HandleFunc("/change-password", h.ChangePassword).Methods("POST")
	s.HandleFunc("/unlink-google", h.UnlinkGoogle).Methods("POST")
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewares.CurrentUser(r.Context())
	if !ok {
		WriteAuthError(w, r, h.Log, &services.AuthError{Kind: services.KindNotAuthenticated, Message: utils.NOT_AUTHENTICATED_ERROR})
		return
	}
	utils.WriteJSON(w, http.StatusOK, user.Public())
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewares.CurrentUserID(r.Context())
	in, err := DecodeBody[services.ProfileInput](w, r)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	user, err := h.Auth.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user.Public())
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewares.CurrentUserID(r.Context())
	in, err := DecodeBody[services.ChangePasswordInput](w, r)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), userID, in); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: utils.PASSWORD_CHANGED})
}

func (h *Handlers) UnlinkGoogle(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewares.CurrentUserID(r.Context())
	in, err := DecodeBody[services.UnlinkInput](w, r)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Auth.UnlinkGoogle(r.Context(), userID, in); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: utils.GOOGLE_UNLINKED})
}

// DeleteUser removes the account and ends the session of this request.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewares.CurrentUserID(r.Context())
	in, err := DecodeBody[services.DeleteAccountInput](w, r)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Auth.DeleteAccount(r.Context(), userID, in); err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	if err := h.Cookies.Clear(w, r); err != nil {
		middlewares.RequestLogger(r.Context(), h.Log).WithError(err).Warn("could not clear session cookie after account deletion")
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: utils.ACCOUNT_DELETED})
}

func (h *Handlers) LoginHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewares.CurrentUserID(r.Context())
	attempts, err := h.Auth.LoginHistory(r.Context(), userID)
	if err != nil {
		WriteAuthError(w, r, h.Log, err)
		return
	}
	history := make([]models.PublicLoginAttempt, 0, len(attempts))
	for i := range attempts {
		history = append(history, attempts[i].Public())
	}
	utils.WriteJSON(w, http.StatusOK, history)
}
