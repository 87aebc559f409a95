// Package upstream executes single attempts against the upstream chat
// service and classifies what came back.
//
// Every attempt requests a stream, consumes it fully, and returns an
// accumulated Result; the HTTP surface decides whether to re-emit the
// preserved deltas as server-sent events or fold them into one buffered
// response. The classification (success, rate_limit, auth_failure, anti_bot,
// upstream_5xx, client_error, transport_error) is the contract between this
// package and the session pool and resilience coordinator above it.
//
// The request carries a fixed browser-fingerprint header set with a
// user-agent chosen per attempt from a rotation list, and the session's
// cookie text forwarded verbatim. No retry or rotation happens here.
package upstream
