package middleware

import (
	"net/http"

	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/quota"
	"corvus-hq/rookery/pkg/security/auth"
)

// Quota enforces the per-key token bucket. Keys are bucketed by their
// authenticated key id; unauthenticated requests (keyless deployments)
// share a single bucket keyed by remote address.
func Quota(limiter *quota.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.KeyIDFromContext(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			if !limiter.Allow(key) {
				writeError(w, r, types.ErrorTypeRateLimited,
					"request quota exceeded, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
