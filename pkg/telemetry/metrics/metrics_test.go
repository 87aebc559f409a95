package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"corvus-hq/rookery/pkg/config"
)

func testCollector() *Collector {
	return NewCollector(config.MetricsConfig{
		Enabled:        true,
		Namespace:      "rookery",
		LatencyBuckets: []float64{0.1, 1, 10},
	}, nil)
}

func TestCollectorCounters(t *testing.T) {
	c := testCollector()

	c.RecordRequest("success")
	c.RecordRequest("success")
	c.RecordRequest("no_healthy_sessions")
	c.Attempt("rate_limit")
	c.SessionRotation("max_age")
	c.ActiveSessions("healthy", 3)

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("requests_total{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("no_healthy_sessions")); got != 1 {
		t.Errorf("requests_total{no_healthy_sessions} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.attemptsTotal.WithLabelValues("rate_limit")); got != 1 {
		t.Errorf("attempts_total{rate_limit} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.sessionRotations.WithLabelValues("max_age")); got != 1 {
		t.Errorf("session_rotations_total{max_age} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.activeSessions.WithLabelValues("healthy")); got != 3 {
		t.Errorf("active_sessions{healthy} = %v, want 3", got)
	}
}

func TestCircuitStateGauge(t *testing.T) {
	c := testCollector()

	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"open", 1},
		{"half_open", 2},
	}
	for _, tt := range tests {
		c.CircuitState(tt.state)
		if got := testutil.ToFloat64(c.circuitState); got != tt.want {
			t.Errorf("circuit_state after %q = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: false, Namespace: "rookery"}, nil)
	c.RecordRequest("success")
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("success")); got != 0 {
		t.Errorf("disabled collector counted %v", got)
	}
}

func TestHandlerExposesNamespacedMetrics(t *testing.T) {
	c := testCollector()
	c.RecordRequest("success")
	c.ObserveGenerationLatency("grok-4", 0.5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, metric := range []string{"rookery_requests_total", "rookery_generation_latency_seconds"} {
		if !strings.Contains(body, metric) {
			t.Errorf("exposition missing %s", metric)
		}
	}
}
