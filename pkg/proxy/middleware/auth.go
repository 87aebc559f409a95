package middleware

import (
	"net/http"

	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/security/auth"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

// Auth requires a valid bearer API key. The authenticated key id is placed
// in the request context for quota bucketing and usage attribution. With no
// keys configured the middleware passes everything through, which is only
// sane for local development.
func Auth(validator *auth.Validator, logger *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if validator.KeyCount() == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, err := validator.Validate(auth.BearerToken(r))
			if err != nil {
				logger.WarnContext(r.Context(), "authentication failed",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, r, types.ErrorTypeAuthenticationRequired,
					"missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithKeyID(r.Context(), keyID)))
		})
	}
}
