package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		healthy    int
		wantStatus Status
		wantCode   int
	}{
		{"all healthy", nil, 2, StatusHealthy, http.StatusOK},
		{"empty pool degrades", nil, 0, StatusDegraded, http.StatusOK},
		{"database down is unhealthy", errors.New("connection refused"), 2, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Register(DatabaseCheck(fakePinger{err: tt.pingErr}))
			c.Register(SessionPoolCheck(func() (int, int) { return 3, tt.healthy }))

			report := c.Run(context.Background())
			if report.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", report.Status, tt.wantStatus)
			}
			if report.HTTPStatus() != tt.wantCode {
				t.Errorf("http status = %d, want %d", report.HTTPStatus(), tt.wantCode)
			}
			if len(report.Checks) != 2 {
				t.Errorf("checks = %d, want 2", len(report.Checks))
			}
		})
	}
}

func TestUnhealthyBeatsDegraded(t *testing.T) {
	c := NewChecker()
	c.Register(SessionPoolCheck(func() (int, int) { return 0, 0 }))
	c.Register(DatabaseCheck(fakePinger{err: errors.New("down")}))

	if report := c.Run(context.Background()); report.Status != StatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", report.Status)
	}
}

func TestCircuitCheck(t *testing.T) {
	open := CircuitCheck(func() string { return "open" })(context.Background())
	if open.Status != StatusDegraded {
		t.Errorf("open circuit status = %q, want degraded", open.Status)
	}
	closed := CircuitCheck(func() string { return "closed" })(context.Background())
	if closed.Status != StatusHealthy {
		t.Errorf("closed circuit status = %q, want healthy", closed.Status)
	}
}

func TestHandlerServesJSON(t *testing.T) {
	c := NewChecker()
	c.Register(SessionPoolCheck(func() (int, int) { return 1, 1 }))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if report.Status != StatusHealthy {
		t.Errorf("status = %q", report.Status)
	}
}
