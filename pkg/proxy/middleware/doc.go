// Package middleware provides the HTTP middleware chain: panic recovery,
// request id propagation, access logging, CORS, handler timeouts, API key
// authentication, and per-key quota enforcement.
package middleware
