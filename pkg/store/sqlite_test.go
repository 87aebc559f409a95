package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"corvus-hq/rookery/pkg/config"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(config.StoreConfig{
		Path:           filepath.Join(t.TempDir(), "rookery.db"),
		MinConnections: 1,
		MaxConnections: 2,
		BusyTimeout:    time.Second,
		WALMode:        true,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.InsertSession(ctx, "sso=abc; sso-rw=def", "grok", map[string]string{"source": "manual"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if created.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", created.Status)
	}
	if created.CookieHash != HashCookie("sso=abc; sso-rw=def") {
		t.Error("cookie hash mismatch")
	}

	got, err := s.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CookieText != "sso=abc; sso-rw=def" {
		t.Error("cookie text not round-tripped")
	}
	if got.Metadata["source"] != "manual" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
}

func TestDuplicateCookieRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.InsertSession(ctx, "sso=abc", "grok", nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.InsertSession(ctx, "sso=abc", "grok", nil); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert err = %v, want ErrDuplicate", err)
	}

	// Same cookie under a different provider is a distinct credential.
	if _, err := s.InsertSession(ctx, "sso=abc", "other", nil); err != nil {
		t.Errorf("other provider insert: %v", err)
	}
}

func TestIncrementUsageCounters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.InsertSession(ctx, "sso=abc", "grok", nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	for _, success := range []bool{true, true, false} {
		if err := s.IncrementUsage(ctx, created.ID, success, 120); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	got, err := s.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsageCount != 3 || got.SuccessCount != 2 || got.FailureCount != 1 {
		t.Errorf("counters = %d/%d/%d, want 3/2/1", got.UsageCount, got.SuccessCount, got.FailureCount)
	}
	if got.SuccessCount+got.FailureCount > got.UsageCount {
		t.Error("success + failure exceeds usage")
	}
	if got.LastUsedAt == nil {
		t.Error("last_used_at not set")
	}
}

func TestStatusTransitions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.InsertSession(ctx, "sso=abc", "grok", nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.UpdateStatus(ctx, created.ID, StatusQuarantined, "auth_failure"); err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if err := s.UpdateStatus(ctx, created.ID, StatusHealthy, "admin"); err != nil {
		t.Fatalf("re-promote: %v", err)
	}
	if err := s.UpdateStatus(ctx, created.ID, StatusRevoked, "admin"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Revoked is terminal.
	if err := s.UpdateStatus(ctx, created.ID, StatusHealthy, "admin"); !errors.Is(err, ErrBadTransition) {
		t.Errorf("revoked->healthy err = %v, want ErrBadTransition", err)
	}

	if err := s.UpdateStatus(ctx, "missing", StatusQuarantined, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
}

func TestListSessionsOrderingAndFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, _ := s.InsertSession(ctx, "sso=a", "grok", nil)
	b, _ := s.InsertSession(ctx, "sso=b", "grok", nil)
	c, _ := s.InsertSession(ctx, "sso=c", "other", nil)

	// b has been used; a and c have not, so they list first.
	if err := s.IncrementUsage(ctx, b.ID, true, 50); err != nil {
		t.Fatalf("increment: %v", err)
	}

	all, err := s.ListSessions(ctx, SessionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[len(all)-1].ID != b.ID {
		t.Error("used session did not sort last")
	}

	grok, err := s.ListSessions(ctx, SessionFilter{Provider: "grok"})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(grok) != 2 {
		t.Fatalf("grok len = %d, want 2", len(grok))
	}
	for _, got := range grok {
		if got.ID == c.ID {
			t.Error("filter leaked other provider")
		}
	}
	_ = a
}

func TestMarkHealthChecked(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, _ := s.InsertSession(ctx, "sso=a", "grok", nil)
	if err := s.MarkHealthChecked(ctx, created.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, _ := s.GetSession(ctx, created.ID)
	if got.LastHealthCheckAt == nil {
		t.Error("last_health_check_at not set")
	}
}

func TestInsertGenerationAndTokenUsage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess, _ := s.InsertSession(ctx, "sso=a", "grok", nil)

	genID, err := s.InsertGeneration(ctx, &Generation{
		RequestID:      "req-1",
		SessionID:      sess.ID,
		Provider:       "grok",
		Model:          "grok-4",
		Prompt:         `[{"role":"user","content":"hi"}]`,
		ResponseText:   "hello",
		FinishReason:   "stop",
		Status:         200,
		LatencyMs:      850,
		PromptTokens:   12,
		ResponseTokens: 4,
	})
	if err != nil {
		t.Fatalf("insert generation: %v", err)
	}
	if genID == "" {
		t.Fatal("no generation id")
	}

	usageID, err := s.InsertTokenUsage(ctx, &TokenUsage{
		GenerationID:           genID,
		SessionID:              sess.ID,
		Provider:               "grok",
		Model:                  "grok-4",
		PromptTotalTokens:      12,
		CompletionTotalTokens:  4,
		TotalTokens:            16,
		PromptCostMicroUSD:     36,
		CompletionCostMicroUSD: 60,
		TotalCostMicroUSD:      96,
	})
	if err != nil {
		t.Fatalf("insert token usage: %v", err)
	}
	if usageID == "" {
		t.Fatal("no token usage id")
	}
}

func TestPing(t *testing.T) {
	s := testStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
