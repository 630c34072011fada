package routes

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/middlewares"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/services"
)

// Handlers holds everything the HTTP routes call into.
type Handlers struct {
	Auth         *services.AuthService
	Cookies      *services.CookieStore
	Chain        *middlewares.AuthChain
	LoginLimiter services.RateLimiter
	ResetLimiter services.RateLimiter
	// Google is nil when Google sign-in is not configured.
	Google   *services.GoogleProvider
	OAuth    *OAuthStateStore
	FloodRPS float64
	Log      *logrus.Entry
}

type authResponse struct {
	User  models.PublicUser    `json:"user"`
	Token services.IssuedToken `json:"token"`
}

func CreateRoutes(r *mux.Router, h *Handlers) {
	r.StrictSlash(true)
	r.Use(middlewares.Metrics)

	api := r.PathPrefix("/api").Subrouter()
	if h.FloodRPS > 0 {
		api.Use(middlewares.FloodGuard(h.FloodRPS))
	}
	h.AuthRouter(api)
	h.UserRouter(api.PathPrefix("/user").Subrouter())
	if h.Google != nil && h.OAuth != nil {
		h.OAuthRouter(api.PathPrefix("/auth/google").Subrouter())
	}
}
