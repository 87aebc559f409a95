package middleware

import (
	"encoding/json"
	"net/http"

	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

// Middleware wraps an http.Handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to a handler. The first middleware in the list
// is the outermost wrapper.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// writeError emits a JSON error body in the proxy error format, tagging it
// with the request id from the context.
func writeError(w http.ResponseWriter, r *http.Request, errorType, message string) {
	resp := types.NewErrorResponse(errorType, message, logging.GetRequestID(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Error.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(resp)
}
