package quota

import (
	"context"
	"sync"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

// Limiter is a coarse per-API-key token bucket. Burst equals the
// requests-per-minute capacity; tokens refill continuously. A disabled
// limiter allows everything.
type Limiter struct {
	cfg    config.QuotaConfig
	logger *logging.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	state   *stateStore
}

// NewLimiter builds the limiter, restoring persisted bucket state when a
// state path is configured. A missing or unreadable state file degrades to
// fresh buckets with a warning.
func NewLimiter(cfg config.QuotaConfig, logger *logging.Logger) (*Limiter, error) {
	l := &Limiter{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if !cfg.Enabled || cfg.StatePath == "" {
		return l, nil
	}

	state, err := openStateStore(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	l.state = state

	snapshots, err := state.loadAll(context.Background())
	if err != nil {
		logger.Warn("quota state restore failed, starting fresh", "error", err)
		return l, nil
	}
	for key, snap := range snapshots {
		b := l.newKeyBucket()
		b.restore(snap.tokens, snap.updatedAt)
		l.buckets[key] = b
	}
	if len(snapshots) > 0 {
		logger.Info("quota state restored", "keys", len(snapshots))
	}
	return l, nil
}

// Allow consumes one token for the key, creating its bucket on first use.
func (l *Limiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = l.newKeyBucket()
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.take(l.now())
}

// Snapshot persists the current bucket states. A no-op without a state
// store.
func (l *Limiter) Snapshot(ctx context.Context) error {
	if l.state == nil {
		return nil
	}

	l.mu.Lock()
	keys := make(map[string]*bucket, len(l.buckets))
	for k, b := range l.buckets {
		keys[k] = b
	}
	l.mu.Unlock()

	now := l.now()
	for key, b := range keys {
		if err := l.state.save(ctx, key, b.remaining(now), now); err != nil {
			return err
		}
	}
	return nil
}

// Close snapshots and releases the state store.
func (l *Limiter) Close() error {
	if l.state == nil {
		return nil
	}
	if err := l.Snapshot(context.Background()); err != nil {
		l.logger.Warn("quota state snapshot on close failed", "error", err)
	}
	return l.state.close()
}

func (l *Limiter) newKeyBucket() *bucket {
	rpm := l.cfg.RequestsPerMinute
	return newBucket(rpm, float64(rpm)/60.0, l.now())
}
