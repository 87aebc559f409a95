package session

import (
	"context"
	"io"
	"testing"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/store"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

func TestHealthLoopStartStop(t *testing.T) {
	gw := newFakeGateway()
	pool := testPool(t, gw, nil)
	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	loop := NewHealthLoop(pool, time.Hour, logger)
	if loop.IsRunning() {
		t.Fatal("running before start")
	}

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !loop.IsRunning() {
		t.Fatal("not running after start")
	}

	// Second start is a no-op.
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}

	loop.Stop()
	if loop.IsRunning() {
		t.Fatal("running after stop")
	}
	// Stop is idempotent.
	loop.Stop()
}

func TestHealthLoopRunOnceDemotes(t *testing.T) {
	gw := newFakeGateway()
	worn, err := gw.InsertSession(context.Background(), "sso=worn", "grok", nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	gw.mu.Lock()
	gw.sessions[worn.ID].UsageCount = 600
	gw.mu.Unlock()

	pool := testPool(t, gw, nil)
	logger, lerr := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	if lerr != nil {
		t.Fatalf("logger: %v", lerr)
	}

	NewHealthLoop(pool, time.Hour, logger).RunOnce(context.Background())

	got, err := gw.GetSession(context.Background(), worn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
}
