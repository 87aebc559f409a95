package quota

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

func TestLimiterDisabledAllowsEverything(t *testing.T) {
	l, err := NewLimiter(config.QuotaConfig{Enabled: false, RequestsPerMinute: 1}, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}

func TestLimiterBurstThenReject(t *testing.T) {
	l, err := NewLimiter(config.QuotaConfig{Enabled: true, RequestsPerMinute: 5}, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("request allowed past empty bucket")
	}
}

func TestLimiterRefills(t *testing.T) {
	l, err := NewLimiter(config.QuotaConfig{Enabled: true, RequestsPerMinute: 60}, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		l.Allow("k")
	}
	if l.Allow("k") {
		t.Fatal("bucket not empty after burst")
	}

	// 60 rpm refills one token per second.
	now = now.Add(time.Second)
	if !l.Allow("k") {
		t.Error("token not refilled after one second")
	}
	if l.Allow("k") {
		t.Error("more than one token refilled")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l, err := NewLimiter(config.QuotaConfig{Enabled: true, RequestsPerMinute: 1}, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") {
		t.Fatal("first request for a rejected")
	}
	if l.Allow("a") {
		t.Error("a's bucket should be empty")
	}
	if !l.Allow("b") {
		t.Error("b's bucket should be untouched")
	}
}

func TestLimiterStateSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.db")
	cfg := config.QuotaConfig{Enabled: true, RequestsPerMinute: 5, StatePath: path}

	l1, err := NewLimiter(cfg, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		l1.Allow("abuser")
	}
	if err := l1.Close(); err != nil {
		t.Fatal(err)
	}

	l2, err := NewLimiter(cfg, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()
	if l2.Allow("abuser") {
		t.Error("restart reset a drained bucket")
	}
	if !l2.Allow("fresh") {
		t.Error("unrelated key rejected")
	}
}

func TestLimiterSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.db")
	cfg := config.QuotaConfig{Enabled: true, RequestsPerMinute: 10, StatePath: path}

	l, err := NewLimiter(cfg, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Allow("k")
	if err := l.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	snaps, err := l.state.loadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	if got := snaps["k"].tokens; got < 8.9 || got > 9.1 {
		t.Errorf("persisted tokens = %v, want ~9", got)
	}
}
