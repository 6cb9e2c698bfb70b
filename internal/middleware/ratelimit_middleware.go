package middleware

import (
	"net/http"

	"ops_gateway/internal/ratelimit"
	"ops_gateway/internal/utils"
)

// RateLimitMiddleware enforces the per-minute limit carried on the
// authenticated API key record. It must run after APIKeyMiddleware.
func RateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := GetAPIKeyRecord(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing API key")
				return
			}

			allowed, err := limiter.Allow(r.Context(), record.ID, record.RateLimitPerMinute)
			if err != nil {
				// Fail open so a Redis outage does not take the gateway down
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
