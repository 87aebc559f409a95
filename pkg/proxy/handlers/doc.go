// Package handlers implements the HTTP endpoints: chat completions with
// buffered and SSE replay responses, the static model listing, and the
// admin session management surface.
package handlers
