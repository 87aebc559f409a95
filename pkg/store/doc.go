// Package store is the persistence gateway: a narrow, typed surface over a
// SQLite database holding sessions, generations, and token-usage rows.
//
// Each operation is one transactional unit. Counter updates happen in a
// single UPDATE statement so concurrent increments on the same session
// serialize at the row level without losing updates. Transient connectivity
// failures are retried at most twice with a short backoff; persistent loss
// surfaces as ErrUnavailable, which callers treat as a telemetry gap rather
// than a request failure.
//
// The session pool is the only component that mutates session status and
// counters through this gateway. Generations and token-usage rows are
// written once and never updated.
package store
