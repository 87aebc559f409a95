package session

import (
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/store"
)

// Rotation reasons, recorded on status demotions and used as metric labels.
const (
	ReasonCookieExpired     = "cookie_expired"
	ReasonRotationThreshold = "rotation_threshold"
	ReasonMaxAge            = "max_age"
	ReasonFailureRate       = "failure_rate"
	ReasonAuthFailure       = "auth_failure"
	ReasonAntiBot           = "anti_bot"
	ReasonAdmin             = "admin"
)

// failureRateMinUsage is the minimum usage count before the failure-rate
// rule applies. Below it, a few early failures would swing the rate wildly.
const failureRateMinUsage = 20

// Classifier derives a session's effective status from its counters and
// timestamps. The stored status lags behind; the classifier is what Acquire
// and the health loop consult.
type Classifier struct {
	rotationThreshold int64
	maxAge            time.Duration
	failureThreshold  float64
}

// NewClassifier builds a classifier from pool configuration.
func NewClassifier(cfg config.PoolConfig) *Classifier {
	return &Classifier{
		rotationThreshold: int64(cfg.RotationThreshold),
		maxAge:            time.Duration(cfg.MaxAgeHours) * time.Hour,
		failureThreshold:  cfg.FailureThreshold,
	}
}

// Classify returns the effective status for s at the given instant, plus the
// rotation reason when the effective status demotes the stored one. Rules
// apply in strict priority order; the first match wins:
//
//  1. stored revoked stays revoked
//  2. expires_at in the past -> expired
//  3. usage_count at the rotation threshold -> expired
//  4. older than max age -> expired
//  5. failure rate at the threshold (once usage >= 20) -> quarantined
//  6. otherwise the stored status stands
func (c *Classifier) Classify(s *store.Session, now time.Time) (store.Status, string) {
	if s.Status == store.StatusRevoked {
		return store.StatusRevoked, ""
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return store.StatusExpired, ReasonCookieExpired
	}
	if s.UsageCount >= c.rotationThreshold {
		return store.StatusExpired, ReasonRotationThreshold
	}
	if now.Sub(s.CreatedAt) > c.maxAge {
		return store.StatusExpired, ReasonMaxAge
	}
	if s.UsageCount >= failureRateMinUsage && s.FailureRate() >= c.failureThreshold {
		return store.StatusQuarantined, ReasonFailureRate
	}
	return s.Status, ""
}
