package middleware

import (
	"net/http"
	"runtime/debug"

	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

// Recovery converts handler panics into a 500 internal_error response. The
// panic value and stack go to the log; the client sees a generic message.
func Recovery(logger *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic in handler",
						"error", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					writeError(w, r, types.ErrorTypeInternal,
						"an internal error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
