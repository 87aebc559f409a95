// Package session implements the session pool: the in-memory projection of
// cookie-backed upstream credentials, their selection for requests, and
// their lifecycle.
//
// The pool is the sole mutator of session status and counters. Acquire
// hands out leases ordered by in-flight leases, usage, and recency; Release
// applies the attempt outcome, advancing per-session failure streaks and
// demoting sessions that cross them. A classifier derives each session's
// effective status from counters and timestamps on every read, so a session
// that crossed its rotation threshold stops being selected immediately, even
// before the background scan persists the demotion.
//
// The health loop runs the scan on a cron schedule, and the importer watches
// a drop directory so operators can add cookie material without the API.
package session
