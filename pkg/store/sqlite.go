package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	"corvus-hq/rookery/pkg/config"
)

// connectRetries is how many times a transiently failing operation is
// retried before surfacing ErrUnavailable.
const connectRetries = 2

// connectRetryDelay is the pause between connectivity retries.
const connectRetryDelay = 100 * time.Millisecond

// SQLite implements Gateway on a SQLite database.
type SQLite struct {
	db     *sql.DB
	config config.StoreConfig
	logger *slog.Logger
}

// NewSQLite opens the database, configures the connection pool, and applies
// the schema. WAL mode is enabled when configured so readers do not block
// the writer.
func NewSQLite(cfg config.StoreConfig) (*SQLite, error) {
	logger := slog.Default().With("component", "store.sqlite")

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, newOpError("open", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MinConnections)

	s := &SQLite{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite store initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_connections", cfg.MaxConnections,
	)

	return s, nil
}

// initialize enables WAL mode, sets the busy timeout, and creates the schema.
func (s *SQLite) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newOpError("enable_wal", err)
		}
	}

	busyMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyMs)); err != nil {
		return newOpError("set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return newOpError("create_schema", err)
	}

	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion,
	); err != nil {
		return newOpError("record_schema_version", err)
	}

	return nil
}

// ListSessions implements Gateway.
func (s *SQLite) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	query := `SELECT id, cookie_text, cookie_hash, provider, created_at,
		last_used_at, expires_at, last_health_check_at,
		usage_count, success_count, failure_count, status, metadata
		FROM sessions`

	var conds []string
	var args []interface{}
	if filter.Provider != "" {
		conds = append(conds, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// IS NOT NULL sorts nulls (never used) ahead of everything else.
	query += " ORDER BY last_used_at IS NOT NULL, last_used_at ASC"

	var sessions []*Session
	err := s.withRetry(ctx, "list_sessions", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		sessions = sessions[:0]
		for rows.Next() {
			sess, err := scanSession(rows)
			if err != nil {
				return err
			}
			sessions = append(sessions, sess)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession implements Gateway.
func (s *SQLite) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, cookie_text, cookie_hash, provider, created_at,
		last_used_at, expires_at, last_health_check_at,
		usage_count, success_count, failure_count, status, metadata
		FROM sessions WHERE id = ?`

	var sess *Session
	err := s.withRetry(ctx, "get_session", func() error {
		row := s.db.QueryRowContext(ctx, query, id)
		got, err := scanSession(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		sess = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// InsertSession implements Gateway.
func (s *SQLite) InsertSession(ctx context.Context, cookieText, provider string, metadata map[string]string) (*Session, error) {
	if cookieText == "" {
		return nil, newOpError("insert_session", fmt.Errorf("empty cookie material"))
	}
	if provider == "" {
		return nil, newOpError("insert_session", fmt.Errorf("empty provider"))
	}

	sess := &Session{
		ID:         uuid.NewString(),
		CookieText: cookieText,
		CookieHash: HashCookie(cookieText),
		Provider:   provider,
		CreatedAt:  time.Now().UTC(),
		Status:     StatusHealthy,
		Metadata:   metadata,
	}

	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, newOpError("insert_session", err)
	}

	err = s.withRetry(ctx, "insert_session", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, cookie_text, cookie_hash, provider, created_at, status, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.CookieText, sess.CookieHash, sess.Provider,
			sess.CreatedAt, string(sess.Status), metaJSON,
		)
		if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		"session_id", sess.ID,
		"provider", provider,
	)
	return sess, nil
}

// UpdateStatus implements Gateway. The current status is read and the
// transition validated inside one transaction so concurrent updates cannot
// race a revoked session back to life.
func (s *SQLite) UpdateStatus(ctx context.Context, id string, newStatus Status, reason string) error {
	if !newStatus.Valid() {
		return newOpError("update_status", fmt.Errorf("unknown status %q", newStatus))
	}

	return s.withRetry(ctx, "update_status", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var current string
		err = tx.QueryRowContext(ctx,
			"SELECT status FROM sessions WHERE id = ?", id,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if Status(current) == newStatus {
			// Idempotent: quarantining a quarantined session is a no-op.
			return tx.Commit()
		}
		if !Status(current).CanTransitionTo(newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrBadTransition, current, newStatus)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET status = ? WHERE id = ?",
			string(newStatus), id,
		); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		s.logger.Info("session status changed",
			"session_id", id,
			"from", current,
			"to", string(newStatus),
			"reason", reason,
		)
		return nil
	})
}

// IncrementUsage implements Gateway. A single UPDATE keeps the counter math
// atomic at the row level; SQLite serializes writers, so concurrent calls
// on the same id cannot lose updates.
func (s *SQLite) IncrementUsage(ctx context.Context, id string, success bool, latencyMs int64) error {
	return s.withRetry(ctx, "increment_usage", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET
				usage_count = usage_count + 1,
				success_count = success_count + CASE WHEN ? THEN 1 ELSE 0 END,
				failure_count = failure_count + CASE WHEN ? THEN 0 ELSE 1 END,
				last_used_at = ?
			 WHERE id = ?`,
			success, success, time.Now().UTC(), id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MarkHealthChecked implements Gateway.
func (s *SQLite) MarkHealthChecked(ctx context.Context, id string) error {
	return s.withRetry(ctx, "mark_health_checked", func() error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE sessions SET last_health_check_at = ? WHERE id = ?",
			time.Now().UTC(), id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// InsertGeneration implements Gateway.
func (s *SQLite) InsertGeneration(ctx context.Context, row *Generation) (string, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.LatencyMs < 0 {
		row.LatencyMs = 0
	}

	err := s.withRetry(ctx, "insert_generation", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO generations (
				id, request_id, session_id, provider, model,
				prompt, temperature, top_p, max_output_tokens, tool_choice, parallel_tool_calls,
				response_text, response_raw, finish_reason, reasoning_content,
				response_id, previous_response_id, incomplete_details, annotations,
				status, latency_ms, error_message,
				prompt_tokens, response_tokens, reasoning_tokens, audio_tokens,
				image_tokens, cached_tokens, accepted_prediction_tokens,
				rejected_prediction_tokens, num_sources_used, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.RequestID, nullString(row.SessionID), row.Provider, row.Model,
			row.Prompt, row.Temperature, row.TopP, row.MaxOutputTokens,
			row.ToolChoice, row.ParallelToolCalls,
			row.ResponseText, row.ResponseRaw, row.FinishReason, row.ReasoningContent,
			row.ResponseID, row.PreviousResponseID, row.IncompleteDetails, row.Annotations,
			row.Status, row.LatencyMs, row.ErrorMessage,
			row.PromptTokens, row.ResponseTokens, row.ReasoningTokens, row.AudioTokens,
			row.ImageTokens, row.CachedTokens, row.AcceptedPredictionTokens,
			row.RejectedPredictionTokens, row.NumSourcesUsed, row.CreatedAt,
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// InsertTokenUsage implements Gateway.
func (s *SQLite) InsertTokenUsage(ctx context.Context, row *TokenUsage) (string, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.withRetry(ctx, "insert_token_usage", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO token_usage (
				id, generation_id, user_id, session_id, provider, model,
				prompt_text_tokens, prompt_audio_tokens, prompt_image_tokens,
				prompt_cached_tokens, prompt_total_tokens,
				completion_reasoning_tokens, completion_audio_tokens,
				completion_text_tokens, completion_accepted_prediction_tokens,
				completion_rejected_prediction_tokens, completion_total_tokens,
				total_tokens,
				prompt_cost_micro_usd, completion_cost_micro_usd, total_cost_micro_usd,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.GenerationID, nullString(row.UserID), nullString(row.SessionID),
			row.Provider, row.Model,
			row.PromptTextTokens, row.PromptAudioTokens, row.PromptImageTokens,
			row.PromptCachedTokens, row.PromptTotalTokens,
			row.CompletionReasoningTokens, row.CompletionAudioTokens,
			row.CompletionTextTokens, row.CompletionAcceptedPredictionTokens,
			row.CompletionRejectedPredictionTokens, row.CompletionTotalTokens,
			row.TotalTokens,
			row.PromptCostMicroUSD, row.CompletionCostMicroUSD, row.TotalCostMicroUSD,
			row.CreatedAt,
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// Ping implements Gateway.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Gateway.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// withRetry runs fn, retrying transient connectivity failures at most
// connectRetries times. Persistent loss surfaces as ErrUnavailable so
// callers can degrade to the in-memory view instead of failing requests.
func (s *SQLite) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= connectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return newOpError(op, ctx.Err())
			case <-time.After(connectRetryDelay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		// Domain errors are final; only connectivity problems retry.
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) ||
			errors.Is(err, ErrBadTransition) {
			return newOpError(op, err)
		}
		if !isTransient(err) {
			return newOpError(op, err)
		}
		lastErr = err
		s.logger.Warn("transient store failure, retrying",
			"op", op,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return newOpError(op, fmt.Errorf("%w: %v", ErrUnavailable, lastErr))
}

// isTransient reports whether an error looks like a connectivity or
// contention failure worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "unable to open database")
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanSession.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSession reads one sessions row.
func scanSession(row rowScanner) (*Session, error) {
	var (
		sess      Session
		status    string
		metaJSON  sql.NullString
		lastUsed  sql.NullTime
		expires   sql.NullTime
		lastCheck sql.NullTime
	)

	err := row.Scan(
		&sess.ID, &sess.CookieText, &sess.CookieHash, &sess.Provider,
		&sess.CreatedAt, &lastUsed, &expires, &lastCheck,
		&sess.UsageCount, &sess.SuccessCount, &sess.FailureCount,
		&status, &metaJSON,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = Status(status)
	if lastUsed.Valid {
		t := lastUsed.Time
		sess.LastUsedAt = &t
	}
	if expires.Valid {
		t := expires.Time
		sess.ExpiresAt = &t
	}
	if lastCheck.Valid {
		t := lastCheck.Time
		sess.LastHealthCheckAt = &t
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt session metadata: %w", err)
		}
	}

	return &sess, nil
}

// marshalMetadata serializes metadata, mapping nil to SQL NULL.
func marshalMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
