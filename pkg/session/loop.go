package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"corvus-hq/rookery/pkg/telemetry/logging"
)

// HealthLoop runs the periodic pool scan on a cron schedule. Scans are
// serial with themselves: a scan still running when the next tick fires
// causes the tick to be skipped.
type HealthLoop struct {
	pool     *Pool
	interval time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewHealthLoop builds the loop; Start schedules it.
func NewHealthLoop(pool *Pool, interval time.Duration, logger *logging.Logger) *HealthLoop {
	return &HealthLoop{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the scan every interval. The first scan fires one
// interval after Start; callers wanting an immediate pass run RunOnce first.
func (l *HealthLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	l.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", l.interval)
	if _, err := l.cron.AddFunc(spec, func() {
		l.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("scheduling health scan: %w", err)
	}

	l.cron.Start()
	l.running = true
	l.logger.Info("session health loop started", "interval", l.interval.String())
	return nil
}

// RunOnce executes a single scan, logging rather than returning failures so
// a broken store never kills the schedule.
func (l *HealthLoop) RunOnce(ctx context.Context) {
	start := time.Now()
	if err := l.pool.RunHealthScan(ctx); err != nil {
		l.logger.Error("session health scan failed", "error", err)
		return
	}

	stats := l.pool.Stats()
	l.logger.Debug("session health scan completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"total", stats.Total,
		"healthy", stats.Healthy,
		"quarantined", stats.Quarantined,
		"expired", stats.Expired,
		"revoked", stats.Revoked)
}

// Stop halts the schedule and waits for an in-flight scan to drain.
func (l *HealthLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cron != nil && l.running {
		ctx := l.cron.Stop()
		<-ctx.Done()
		l.running = false
		l.logger.Info("session health loop stopped")
	}
}

// IsRunning reports whether the schedule is active.
func (l *HealthLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
