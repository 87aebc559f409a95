package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// stateSchema holds bucket snapshots keyed by API key id. The table is tiny
// and written only on snapshot, so the pure-Go driver is sufficient here.
const stateSchema = `
CREATE TABLE IF NOT EXISTS quota_state (
    key_id     TEXT PRIMARY KEY,
    tokens     REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// stateStore persists bucket snapshots so a restart does not hand abusers a
// fresh bucket.
type stateStore struct {
	db *sql.DB
}

// openStateStore opens (creating if needed) the snapshot database.
func openStateStore(path string) (*stateStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening quota state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing quota state schema: %w", err)
	}
	return &stateStore{db: db}, nil
}

// snapshot is one persisted bucket state.
type snapshot struct {
	tokens    float64
	updatedAt time.Time
}

// loadAll returns every persisted snapshot.
func (s *stateStore) loadAll(ctx context.Context) (map[string]snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key_id, tokens, updated_at FROM quota_state`)
	if err != nil {
		return nil, fmt.Errorf("loading quota state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]snapshot)
	for rows.Next() {
		var key string
		var snap snapshot
		if err := rows.Scan(&key, &snap.tokens, &snap.updatedAt); err != nil {
			return nil, fmt.Errorf("scanning quota state: %w", err)
		}
		out[key] = snap
	}
	return out, rows.Err()
}

// save upserts one snapshot.
func (s *stateStore) save(ctx context.Context, key string, tokens float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO quota_state (key_id, tokens, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key_id) DO UPDATE SET tokens = excluded.tokens, updated_at = excluded.updated_at`,
		key, tokens, at)
	if err != nil {
		return fmt.Errorf("saving quota state: %w", err)
	}
	return nil
}

func (s *stateStore) close() error {
	return s.db.Close()
}
