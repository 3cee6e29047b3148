package api

import (
	"net"
	"net/http"
	"strconv"

	"template-validator/internal/common/errors"
	"template-validator/internal/common/logger"
	"template-validator/internal/common/metrics"
	"template-validator/internal/ratelimit"
)

// rateLimit rejects clients over their window with 429. Limiter failures let the request
// through.
func rateLimit(limiter ratelimit.Limiter, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				metrics.RateLimitErrors.Inc()
				log.Warn("Rate limiter unavailable, allowing request", map[string]interface{}{
					"client": key,
					"error":  err.Error(),
				})
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			remaining := decision.Limit - decision.Count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !decision.Allowed {
				metrics.RateLimitRejected.Inc()
				encodeError(r.Context(), errors.NewRateLimitExceededError(decision.RetryAfter), w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the client IP. RealIP has already replaced RemoteAddr when proxy headers are
// present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
