package auth

import "context"

type contextKey string

// keyIDContextKey carries the authenticated key id through the request.
const keyIDContextKey contextKey = "auth_key_id"

// WithKeyID attaches the authenticated key id to the context.
func WithKeyID(ctx context.Context, keyID string) context.Context {
	return context.WithValue(ctx, keyIDContextKey, keyID)
}

// KeyIDFromContext returns the authenticated key id, or "" when the request
// was not authenticated.
func KeyIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(keyIDContextKey).(string); ok {
		return id
	}
	return ""
}
