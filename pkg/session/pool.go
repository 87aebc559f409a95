package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/store"
	"corvus-hq/rookery/pkg/telemetry/logging"
	"corvus-hq/rookery/pkg/upstream"
)

// Streak thresholds for outcome-driven demotions. Streaks are in-memory,
// per session, and reset on any success. A single 401 can be transient, so
// the session keeps rotating until a full streak lands; a session that
// earns a second auth streak after operator re-promotion is revoked.
const (
	authFailureQuarantineStreak = 3
	antiBotQuarantineStreak     = 3
)

// acquirePollInterval bounds how often a blocked Acquire rechecks the pool
// between release signals.
const acquirePollInterval = 50 * time.Millisecond

// Recorder receives pool telemetry. The metrics collector implements it; a
// nil recorder disables emission.
type Recorder interface {
	// SessionRotation counts one status demotion, labeled by reason.
	SessionRotation(reason string)

	// ActiveSessions sets the session count gauge for one status.
	ActiveSessions(status string, count int)
}

// nopRecorder is the default when no metrics collector is wired.
type nopRecorder struct{}

func (nopRecorder) SessionRotation(string)     {}
func (nopRecorder) ActiveSessions(string, int) {}

// entry is the in-memory projection of one session plus the volatile state
// the store does not carry: in-flight lease count and consecutive-failure
// streaks.
type entry struct {
	session       *store.Session
	leases        int
	authStreak    int
	antiBotStreak int

	// authQuarantines counts auth-streak quarantines over the session's
	// lifetime. Unlike the streaks it survives Activate, so the demotion
	// escalates to revocation the second time around.
	authQuarantines int
}

// Pool is the in-memory session pool: the sole mutator of session status and
// counters. It projects the store's session rows, hands out leases to the
// resilience coordinator, and applies outcome-driven demotions on release.
type Pool struct {
	gateway    store.Gateway
	classifier *Classifier
	cfg        config.PoolConfig
	provider   string
	logger     *logging.Logger
	recorder   Recorder

	mu      sync.Mutex
	entries map[string]*entry

	// released wakes one blocked Acquire after a release or refresh.
	released chan struct{}
}

// NewPool builds an empty pool. Call Refresh to load sessions from the
// store before serving.
func NewPool(gateway store.Gateway, cfg config.PoolConfig, provider string, logger *logging.Logger, recorder Recorder) *Pool {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pool{
		gateway:    gateway,
		classifier: NewClassifier(cfg),
		cfg:        cfg,
		provider:   provider,
		logger:     logger,
		recorder:   recorder,
		entries:    make(map[string]*entry),
		released:   make(chan struct{}, 1),
	}
}

// Refresh reloads the projection from the store, preserving lease counts and
// failure streaks for sessions that survive the reload.
func (p *Pool) Refresh(ctx context.Context) error {
	sessions, err := p.gateway.ListSessions(ctx, store.SessionFilter{Provider: p.provider})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		seen[s.ID] = true
		if e, ok := p.entries[s.ID]; ok {
			e.session = s
		} else {
			p.entries[s.ID] = &entry{session: s}
		}
	}
	for id := range p.entries {
		if !seen[id] {
			delete(p.entries, id)
		}
	}

	p.signal()
	return nil
}

// Acquire leases the best available healthy session, skipping ids in
// exclude (the sessions already tried within the caller's request). When no
// candidate exists it blocks up to the configured acquire wait, then returns
// ErrNoCapacity.
//
// Selection order: fewest in-flight leases, then lowest usage count, then
// least recently used (never-used first). A session already leased may be
// leased again when it is the only candidate.
func (p *Pool) Acquire(ctx context.Context, exclude map[string]bool) (*store.Session, error) {
	deadline := time.Now().Add(p.cfg.AcquireWait)
	for {
		if s := p.tryAcquire(exclude); s != nil {
			return s, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNoCapacity
		}
		wait := acquirePollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-p.released:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// tryAcquire picks and leases a candidate, or returns nil when none exists.
func (p *Pool) tryAcquire(exclude map[string]bool) *store.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var candidates []*entry
	for _, e := range p.entries {
		if exclude[e.session.ID] {
			continue
		}
		if effective, _ := p.classifier.Classify(e.session, now); effective != store.StatusHealthy {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.leases != b.leases {
			return a.leases < b.leases
		}
		if a.session.UsageCount != b.session.UsageCount {
			return a.session.UsageCount < b.session.UsageCount
		}
		au, bu := a.session.LastUsedAt, b.session.LastUsedAt
		switch {
		case au == nil && bu == nil:
			return a.session.ID < b.session.ID
		case au == nil:
			return true
		case bu == nil:
			return false
		default:
			return au.Before(*bu)
		}
	})

	picked := candidates[0]
	picked.leases++
	snapshot := *picked.session
	return &snapshot
}

// Release returns a lease and applies the outcome: counters persist through
// the gateway, failure streaks advance, and demotions fire when a streak
// threshold is hit. A gateway outage downgrades persistence to a logged
// telemetry gap; the release itself still succeeds.
func (p *Pool) Release(ctx context.Context, id string, outcome upstream.Outcome, latencyMs int64) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return store.ErrNotFound
	}
	if e.leases > 0 {
		e.leases--
	}

	// A client_error is the caller's fault, not the session's; it counts
	// as a successful use for failure-rate purposes.
	success := outcome.CountsAsSuccess() || outcome == upstream.OutcomeClientError

	e.session.UsageCount++
	if success {
		e.session.SuccessCount++
	} else {
		e.session.FailureCount++
	}
	now := time.Now()
	e.session.LastUsedAt = &now

	var demoteTo store.Status
	var demoteReason string
	switch outcome {
	case upstream.OutcomeSuccess:
		e.authStreak = 0
		e.antiBotStreak = 0
	case upstream.OutcomeAuthFailure:
		e.authStreak++
		if e.authStreak >= authFailureQuarantineStreak {
			if e.authQuarantines > 0 {
				demoteTo, demoteReason = store.StatusRevoked, ReasonAuthFailure
			} else if e.session.Status == store.StatusHealthy {
				demoteTo, demoteReason = store.StatusQuarantined, ReasonAuthFailure
				e.authQuarantines++
			}
		}
	case upstream.OutcomeAntiBot:
		e.antiBotStreak++
		if e.antiBotStreak >= antiBotQuarantineStreak && e.session.Status == store.StatusHealthy {
			demoteTo, demoteReason = store.StatusQuarantined, ReasonAntiBot
		}
	}
	sessionStatus := e.session.Status
	p.mu.Unlock()

	if err := p.gateway.IncrementUsage(ctx, id, success, latencyMs); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			p.logger.WarnContext(ctx, "usage counters not persisted, store unavailable",
				"session_id", id, "outcome", string(outcome))
		} else {
			p.logger.ErrorContext(ctx, "usage counter update failed",
				"session_id", id, "outcome", string(outcome), "error", err)
		}
	}

	if demoteTo != "" && sessionStatus.CanTransitionTo(demoteTo) {
		if err := p.transition(ctx, id, demoteTo, demoteReason); err != nil {
			p.logger.ErrorContext(ctx, "session demotion failed",
				"session_id", id, "to", string(demoteTo), "reason", demoteReason, "error", err)
		}
	}

	p.signal()
	return nil
}

// transition applies one status change to the store and the projection, and
// counts the rotation.
func (p *Pool) transition(ctx context.Context, id string, to store.Status, reason string) error {
	if err := p.gateway.UpdateStatus(ctx, id, to, reason); err != nil {
		return err
	}

	p.mu.Lock()
	if e, ok := p.entries[id]; ok {
		e.session.Status = to
	}
	p.mu.Unlock()

	p.recorder.SessionRotation(reason)
	p.logger.InfoContext(ctx, "session status changed",
		"session_id", id, "to", string(to), "reason", reason)
	return nil
}

// Quarantine pulls a session from rotation by operator action.
func (p *Pool) Quarantine(ctx context.Context, id string) error {
	return p.transition(ctx, id, store.StatusQuarantined, ReasonAdmin)
}

// Revoke permanently retires a session. Revocation is terminal.
func (p *Pool) Revoke(ctx context.Context, id string) error {
	return p.transition(ctx, id, store.StatusRevoked, ReasonAdmin)
}

// Activate re-promotes a quarantined session to healthy and resets its
// failure streaks, so the re-promoted session gets a full streak before the
// next demotion. Any other starting status is rejected by the transition
// table.
func (p *Pool) Activate(ctx context.Context, id string) error {
	if err := p.transition(ctx, id, store.StatusHealthy, ReasonAdmin); err != nil {
		return err
	}
	p.mu.Lock()
	if e, ok := p.entries[id]; ok {
		e.authStreak = 0
		e.antiBotStreak = 0
	}
	p.mu.Unlock()
	p.signal()
	return nil
}

// Add imports new cookie material as a healthy session. Duplicate cookie
// material for the same provider returns store.ErrDuplicate.
func (p *Pool) Add(ctx context.Context, cookieText string, metadata map[string]string) (*store.Session, error) {
	s, err := p.gateway.InsertSession(ctx, cookieText, p.provider, metadata)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[s.ID] = &entry{session: s}
	p.mu.Unlock()

	p.signal()
	snapshot := *s
	return &snapshot, nil
}

// Sessions returns a point-in-time copy of every pooled session.
func (p *Pool) Sessions() []*store.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*store.Session, 0, len(p.entries))
	for _, e := range p.entries {
		snapshot := *e.session
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Get returns one pooled session by id, or store.ErrNotFound.
func (p *Pool) Get(id string) (*store.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	snapshot := *e.session
	return &snapshot, nil
}

// Stats summarizes the pool by effective status.
type Stats struct {
	Total          int     `json:"total"`
	Healthy        int     `json:"healthy"`
	Quarantined    int     `json:"quarantined"`
	Expired        int     `json:"expired"`
	Revoked        int     `json:"revoked"`
	AvgFailureRate float64 `json:"avg_failure_rate"`
}

// Stats computes pool statistics from effective (classified) statuses.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var stats Stats
	var rateSum float64
	for _, e := range p.entries {
		stats.Total++
		rateSum += e.session.FailureRate()
		effective, _ := p.classifier.Classify(e.session, now)
		switch effective {
		case store.StatusHealthy:
			stats.Healthy++
		case store.StatusQuarantined:
			stats.Quarantined++
		case store.StatusExpired:
			stats.Expired++
		case store.StatusRevoked:
			stats.Revoked++
		}
	}
	if stats.Total > 0 {
		stats.AvgFailureRate = rateSum / float64(stats.Total)
	}
	return stats
}

// RunHealthScan is one background pass: reload the projection, reclassify
// every session, persist demotions, refresh the status gauges, and mark the
// scanned sessions health-checked. The scheduler guarantees scans never
// overlap.
func (p *Pool) RunHealthScan(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	snapshot := make([]*store.Session, 0, len(p.entries))
	for _, e := range p.entries {
		s := *e.session
		snapshot = append(snapshot, &s)
	}
	p.mu.Unlock()

	now := time.Now()
	for _, s := range snapshot {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		effective, reason := p.classifier.Classify(s, now)
		if effective != s.Status && s.Status.CanTransitionTo(effective) {
			if err := p.transition(ctx, s.ID, effective, reason); err != nil {
				p.logger.ErrorContext(ctx, "health scan demotion failed",
					"session_id", s.ID, "to", string(effective), "error", err)
			}
		}

		if s.Status != store.StatusRevoked {
			if err := p.gateway.MarkHealthChecked(ctx, s.ID); err != nil && !errors.Is(err, store.ErrUnavailable) {
				p.logger.WarnContext(ctx, "health check timestamp not persisted",
					"session_id", s.ID, "error", err)
			}
		}
	}

	stats := p.Stats()
	p.recorder.ActiveSessions(string(store.StatusHealthy), stats.Healthy)
	p.recorder.ActiveSessions(string(store.StatusQuarantined), stats.Quarantined)
	p.recorder.ActiveSessions(string(store.StatusExpired), stats.Expired)
	p.recorder.ActiveSessions(string(store.StatusRevoked), stats.Revoked)
	return nil
}

// signal wakes one blocked Acquire without blocking the caller.
func (p *Pool) signal() {
	select {
	case p.released <- struct{}{}:
	default:
	}
}
