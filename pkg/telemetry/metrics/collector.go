package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"corvus-hq/rookery/pkg/config"
)

// Collector owns every Prometheus metric the proxy exposes and registers
// them against its own registry. All record methods are safe for concurrent
// use and are no-ops when metrics are disabled.
//
// Metrics:
//   - rookery_requests_total{status}: terminal request results
//   - rookery_generation_latency_seconds{model}: successful generation latency
//   - rookery_active_sessions{status}: pool composition gauges
//   - rookery_session_rotations_total{reason}: status demotions
//   - rookery_attempts_total{outcome}: individual upstream attempts
//   - rookery_circuit_state: 0 closed, 1 open, 2 half_open
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	activeSessions    *prometheus.GaugeVec
	sessionRotations  *prometheus.CounterVec
	attemptsTotal     *prometheus.CounterVec
	circuitState      prometheus.Gauge
}

// NewCollector creates and registers the metric set. A nil registry gets a
// fresh private one, which keeps tests isolated from each other.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Terminal results of inbound chat requests",
			},
			[]string{"status"},
		),

		generationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "generation_latency_seconds",
				Help:      "Latency of successful upstream generations",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"model"},
		),

		activeSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "active_sessions",
				Help:      "Pool composition by effective session status",
			},
			[]string{"status"},
		),

		sessionRotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "session_rotations_total",
				Help:      "Session status demotions by reason",
			},
			[]string{"reason"},
		),

		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "attempts_total",
				Help:      "Individual upstream attempts by outcome",
			},
			[]string{"outcome"},
		),

		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half_open",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.generationLatency,
		c.activeSessions,
		c.sessionRotations,
		c.attemptsTotal,
		c.circuitState,
	)

	return c
}

// Registry exposes the underlying registry for exposition and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRequest counts one terminal request result.
func (c *Collector) RecordRequest(status string) {
	if !c.enabled {
		return
	}
	c.requestsTotal.WithLabelValues(status).Inc()
}

// ObserveGenerationLatency records one successful generation's latency.
func (c *Collector) ObserveGenerationLatency(model string, seconds float64) {
	if !c.enabled {
		return
	}
	c.generationLatency.WithLabelValues(model).Observe(seconds)
}

// SessionRotation counts one status demotion. Implements session.Recorder.
func (c *Collector) SessionRotation(reason string) {
	if !c.enabled {
		return
	}
	c.sessionRotations.WithLabelValues(reason).Inc()
}

// ActiveSessions sets the pool gauge for one status. Implements
// session.Recorder.
func (c *Collector) ActiveSessions(status string, count int) {
	if !c.enabled {
		return
	}
	c.activeSessions.WithLabelValues(status).Set(float64(count))
}

// Attempt counts one upstream attempt. Implements resilience.Recorder.
func (c *Collector) Attempt(outcome string) {
	if !c.enabled {
		return
	}
	c.attemptsTotal.WithLabelValues(outcome).Inc()
}

// CircuitState sets the circuit gauge. Implements resilience.Recorder.
func (c *Collector) CircuitState(state string) {
	if !c.enabled {
		return
	}
	var v float64
	switch state {
	case "open":
		v = 1
	case "half_open":
		v = 2
	}
	c.circuitState.Set(v)
}
