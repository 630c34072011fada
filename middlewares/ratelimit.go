package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/libstring"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

var (
	directIPLookups = []string{"RemoteAddr"}
	proxyIPLookups  = []string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"}

	ipLookups = directIPLookups
)

// TrustProxyHeaders makes ClientIP read forwarding headers. Call it once at
// startup, before serving.
func TrustProxyHeaders(trust bool) {
	if trust {
		ipLookups = proxyIPLookups
		return
	}
	ipLookups = directIPLookups
}

func ClientIP(r *http.Request) string {
	return libstring.RemoteIP(ipLookups, 0, r)
}

// RateLimit rejects requests once the client IP used up its window in
// limiter. A limiter that cannot answer rejects too.
func RateLimit(name string, rl services.RateLimiter, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := rl.Allow(r.Context(), ClientIP(r))
			if err != nil {
				RequestLogger(r.Context(), log).WithError(err).WithField("limiter", name).Error("rate limiter unavailable")
				utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrorBody{
					Code:    string(services.KindUnavailable),
					Message: utils.SERVER_DOWN,
				})
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				rateLimitedTotal.WithLabelValues(name).Inc()
				retryAfter := services.Seconds(decision.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.RetryAfter).Unix(), 10))
				utils.WriteError(w, http.StatusTooManyRequests, utils.ErrorBody{
					Code:    string(services.KindRateLimited),
					Message: utils.GENERIC_RATE_LIMIT_ERROR + utils.GenerateBanMessage(decision.RetryAfter),
					Details: map[string]int{"retryAfter": retryAfter},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FloodGuard caps the request rate per client IP with a token bucket.
func FloodGuard(rps float64) func(http.Handler) http.Handler {
	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookups(ipLookups)
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(utils.ErrorJSON(utils.ErrorBody{
		Code:    string(services.KindRateLimited),
		Message: utils.GENERIC_RATE_LIMIT_ERROR + "Please slow down.",
	}))
	lmt.SetOnLimitReached(func(w http.ResponseWriter, r *http.Request) {
		rateLimitedTotal.WithLabelValues("flood").Inc()
	})
	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}
