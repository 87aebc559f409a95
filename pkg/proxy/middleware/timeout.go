package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the total handler duration by deadline on the request
// context. The coordinator observes the deadline between attempts; the
// response itself is not buffered, so streaming stays intact.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
