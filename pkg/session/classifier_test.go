package session

import (
	"testing"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/store"
)

func testClassifier() *Classifier {
	return NewClassifier(config.PoolConfig{
		RotationThreshold: 500,
		MaxAgeHours:       24,
		FailureThreshold:  0.2,
	})
}

func TestClassifyRules(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		session    store.Session
		wantStatus store.Status
		wantReason string
	}{
		{
			name:       "fresh healthy",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute)},
			wantStatus: store.StatusHealthy,
		},
		{
			name:       "revoked stays revoked",
			session:    store.Session{Status: store.StatusRevoked, CreatedAt: now.Add(-48 * time.Hour), UsageCount: 1000},
			wantStatus: store.StatusRevoked,
		},
		{
			name:       "expiry timestamp past",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute), ExpiresAt: &past},
			wantStatus: store.StatusExpired,
			wantReason: ReasonCookieExpired,
		},
		{
			name:       "expiry timestamp future",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute), ExpiresAt: &future},
			wantStatus: store.StatusHealthy,
		},
		{
			name:       "at rotation threshold",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute), UsageCount: 500},
			wantStatus: store.StatusExpired,
			wantReason: ReasonRotationThreshold,
		},
		{
			name:       "one below rotation threshold",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute), UsageCount: 499},
			wantStatus: store.StatusHealthy,
		},
		{
			name:       "past max age",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-25 * time.Hour)},
			wantStatus: store.StatusExpired,
			wantReason: ReasonMaxAge,
		},
		{
			name:       "exactly max age is not expired",
			session:    store.Session{Status: store.StatusHealthy, CreatedAt: now.Add(-24 * time.Hour)},
			wantStatus: store.StatusHealthy,
		},
		{
			name: "failure rate at threshold with enough usage",
			session: store.Session{
				Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute),
				UsageCount: 20, SuccessCount: 16, FailureCount: 4,
			},
			wantStatus: store.StatusQuarantined,
			wantReason: ReasonFailureRate,
		},
		{
			name: "failure rate high but usage below minimum",
			session: store.Session{
				Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute),
				UsageCount: 19, SuccessCount: 9, FailureCount: 10,
			},
			wantStatus: store.StatusHealthy,
		},
		{
			name: "expiry beats rotation threshold",
			session: store.Session{
				Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute),
				ExpiresAt: &past, UsageCount: 600,
			},
			wantStatus: store.StatusExpired,
			wantReason: ReasonCookieExpired,
		},
		{
			name: "rotation threshold beats failure rate",
			session: store.Session{
				Status: store.StatusHealthy, CreatedAt: now.Add(-time.Minute),
				UsageCount: 500, FailureCount: 400,
			},
			wantStatus: store.StatusExpired,
			wantReason: ReasonRotationThreshold,
		},
		{
			name:       "quarantined stays quarantined without a demotion rule",
			session:    store.Session{Status: store.StatusQuarantined, CreatedAt: now.Add(-time.Minute)},
			wantStatus: store.StatusQuarantined,
		},
	}

	c := testClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := c.Classify(&tt.session, now)
			if got != tt.wantStatus {
				t.Errorf("status = %q, want %q", got, tt.wantStatus)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}
