package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 360 * time.Second // headroom over the 337s default request budget
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Upstream defaults
	DefaultUpstreamBaseURL = "https://api.x.ai"
	DefaultProvider        = "grok"
	DefaultAttemptTimeout  = 60 * time.Second

	// Pool defaults
	DefaultRotationThreshold   = 500
	DefaultMaxAgeHours         = 24
	DefaultFailureThreshold    = 0.2
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultAcquireWait         = 2 * time.Second

	// Resilience defaults
	DefaultMaxAttempts             = 5
	DefaultCircuitFailureThreshold = 5
	DefaultCircuitWindow           = 60 * time.Second
	DefaultCircuitRecoveryTimeout  = 60 * time.Second

	// Store defaults
	DefaultStorePath      = "data/rookery.db"
	DefaultMinConnections = 10
	DefaultMaxConnections = 20
	DefaultStoreBusyWait  = 5 * time.Second
	DefaultStoreWALMode   = true

	// Quota defaults
	DefaultQuotaEnabled = false
	DefaultQuotaRPM     = 60

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "rookery"
)

// DefaultBackoff is the progressive retry schedule. Deterministic, no
// jitter, bounded at 67s total.
var DefaultBackoff = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	30 * time.Second,
}

// DefaultUserAgents is the built-in user-agent rotation list, mirroring the
// browser profiles the upstream expects to see.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
}

// DefaultLatencyBuckets is tuned for upstream chat latencies (100ms - 2min).
var DefaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0}

// DefaultConfig returns a fully populated configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.Provider == "" {
		cfg.Upstream.Provider = DefaultProvider
	}
	if cfg.Upstream.AttemptTimeout == 0 {
		cfg.Upstream.AttemptTimeout = DefaultAttemptTimeout
	}
	if len(cfg.Upstream.UserAgents) == 0 {
		cfg.Upstream.UserAgents = append([]string(nil), DefaultUserAgents...)
	}

	if cfg.Pool.RotationThreshold == 0 {
		cfg.Pool.RotationThreshold = DefaultRotationThreshold
	}
	if cfg.Pool.MaxAgeHours == 0 {
		cfg.Pool.MaxAgeHours = DefaultMaxAgeHours
	}
	if cfg.Pool.FailureThreshold == 0 {
		cfg.Pool.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Pool.HealthCheckInterval == 0 {
		cfg.Pool.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.Pool.AcquireWait == 0 {
		cfg.Pool.AcquireWait = DefaultAcquireWait
	}

	if cfg.Resilience.MaxAttempts == 0 {
		cfg.Resilience.MaxAttempts = DefaultMaxAttempts
	}
	if len(cfg.Resilience.Backoff) == 0 {
		cfg.Resilience.Backoff = append([]time.Duration(nil), DefaultBackoff...)
	}
	if cfg.Resilience.CircuitFailureThreshold == 0 {
		cfg.Resilience.CircuitFailureThreshold = DefaultCircuitFailureThreshold
	}
	if cfg.Resilience.CircuitWindow == 0 {
		cfg.Resilience.CircuitWindow = DefaultCircuitWindow
	}
	if cfg.Resilience.CircuitRecoveryTimeout == 0 {
		cfg.Resilience.CircuitRecoveryTimeout = DefaultCircuitRecoveryTimeout
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.MinConnections == 0 {
		cfg.Store.MinConnections = DefaultMinConnections
	}
	if cfg.Store.MaxConnections == 0 {
		cfg.Store.MaxConnections = DefaultMaxConnections
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultStoreBusyWait
	}
	// WALMode defaults on; a YAML `wal_mode: false` is indistinguishable
	// from unset, so the default is applied in Load before unmarshal.

	if cfg.Quota.RequestsPerMinute == 0 {
		cfg.Quota.RequestsPerMinute = DefaultQuotaRPM
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = append([]float64(nil), DefaultLatencyBuckets...)
	}
}
