package resilience

import (
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int32

const (
	// StateClosed passes requests through and counts terminal failures.
	StateClosed State = iota

	// StateOpen short-circuits requests until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen admits exactly one probe request; its outcome decides
	// whether the circuit closes or re-opens.
	StateHalfOpen
)

// String returns the metric label for the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker over the upstream as a whole.
// It opens when terminal failures cross the threshold within a sliding
// window, and admits a single probe after the recovery timeout. All state
// is process-local.
type Breaker struct {
	failureThreshold int
	window           time.Duration
	recovery         time.Duration

	// now is replaceable in tests.
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	probing  bool
}

// NewBreaker builds a closed breaker.
func NewBreaker(failureThreshold int, window, recovery time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		window:           window,
		recovery:         recovery,
		now:              time.Now,
		state:            StateClosed,
	}
}

// Admit reports whether a request may proceed and whether the caller was
// granted the single half-open probe slot. A probe holder must resolve the
// slot with RecordSuccess, RecordFailure, or ReleaseProbe; an unresolved
// slot blocks every later request.
func (b *Breaker) Admit() (allowed, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.recovery {
			return false, false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true, true
	case StateHalfOpen:
		if b.probing {
			return false, false
		}
		b.probing = true
		return true, true
	}
	return false, false
}

// Allow reports whether a request may proceed. See Admit.
func (b *Breaker) Allow() bool {
	allowed, _ := b.Admit()
	return allowed
}

// RecordSuccess reports a request that reached the upstream and succeeded.
// A half-open probe success closes the circuit and clears the window. In
// the closed state successes do not reset the window; five terminal
// failures within it open the circuit however many successes interleave.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.failures = b.failures[:0]
	}
}

// RecordFailure reports a terminal request failure. In the closed state it
// counts toward the windowed threshold; in half-open it re-opens the
// circuit and restarts the recovery timer.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
		b.probing = false
	case StateClosed:
		b.failures = append(b.failures, now)
		b.prune(now)
		if len(b.failures) >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = now
			b.failures = b.failures[:0]
		}
	case StateOpen:
		// Already open; the window restarts when the circuit closes.
	}
}

// ReleaseProbe returns an unused half-open probe slot. Used when the
// request resolved without reaching a verdict on upstream health, such as
// when no session was available to try.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.probing = false
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// prune drops failures that aged out of the sliding window. Caller holds mu.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}
