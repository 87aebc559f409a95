// Package resilience turns single upstream attempts into reliable requests.
//
// The coordinator owns the per-request state machine: acquire a session,
// attempt, classify, release, and either finish or back off and rotate to a
// session not yet tried. The backoff schedule is fixed and deterministic.
// Exactly one generation row is persisted per attempted inbound request,
// whatever the attempt count, and a token-usage row follows on success;
// requests refused before any attempt leave no row.
//
// The circuit breaker guards the upstream as a whole. Terminal failures
// within a sliding window open it; while open, requests are refused before
// any session is touched. After the recovery timeout a single probe request
// is admitted, and its outcome closes or re-opens the circuit. Pool
// exhaustion never counts against the breaker.
package resilience
