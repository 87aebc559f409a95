package store

import "context"

// Gateway is the narrow, typed surface over the relational store. Every
// operation is a single transactional unit; concurrent IncrementUsage calls
// on the same id serialize at the row level without losing updates.
//
// The SQLite implementation is the production backend. The interface exists
// so the pool and coordinator can be tested against fakes.
type Gateway interface {
	// ListSessions returns sessions matching filter, ordered by
	// last_used_at ascending with nulls first (least recently used first).
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)

	// GetSession returns one session or ErrNotFound.
	GetSession(ctx context.Context, id string) (*Session, error)

	// InsertSession creates a session from cookie material. Returns
	// ErrDuplicate when (provider, cookie_hash) already exists.
	InsertSession(ctx context.Context, cookieText, provider string, metadata map[string]string) (*Session, error)

	// UpdateStatus applies a status change, rejecting transitions outside
	// the permitted table with ErrBadTransition.
	UpdateStatus(ctx context.Context, id string, newStatus Status, reason string) error

	// IncrementUsage atomically bumps usage_count and exactly one of
	// success_count / failure_count, and refreshes last_used_at.
	IncrementUsage(ctx context.Context, id string, success bool, latencyMs int64) error

	// MarkHealthChecked sets last_health_check_at to now.
	MarkHealthChecked(ctx context.Context, id string) error

	// InsertGeneration persists the terminal record of one inbound request.
	InsertGeneration(ctx context.Context, row *Generation) (string, error)

	// InsertTokenUsage persists an accounting row for a successful generation.
	InsertTokenUsage(ctx context.Context, row *TokenUsage) (string, error)

	// Ping reports connectivity, for health checks.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
