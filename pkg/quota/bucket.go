package quota

import (
	"sync"
	"time"
)

// bucket is a token bucket with fractional tokens so low per-minute rates
// refill smoothly. Burst equals capacity; tokens accrue at a constant
// per-second rate.
type bucket struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time
}

func newBucket(capacity int, refillPerSec float64, now time.Time) *bucket {
	return &bucket{
		capacity:     float64(capacity),
		tokens:       float64(capacity),
		refillPerSec: refillPerSec,
		lastRefill:   now,
	}
}

// take consumes one token if available.
func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// remaining reports the current token count after refill.
func (b *bucket) remaining(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now)
	return b.tokens
}

// refillLocked adds elapsed-time tokens up to capacity. Caller holds mu.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// restore overrides bucket state from a persisted snapshot. The refill
// clock starts at the snapshot time, so tokens accrued since a restart are
// credited on the next take.
func (b *bucket) restore(tokens float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tokens > b.capacity {
		tokens = b.capacity
	}
	b.tokens = tokens
	b.lastRefill = at
}
