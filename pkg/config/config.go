package config

import "time"

// Config is the root configuration for Rookery. It is loaded once at startup
// and treated as immutable afterwards; changing any knob requires a restart.
type Config struct {
	// Server configures the inbound HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Upstream configures the upstream chat service client.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Pool configures session rotation and health rules.
	Pool PoolConfig `yaml:"pool"`

	// Resilience configures retry and circuit breaker behavior.
	Resilience ResilienceConfig `yaml:"resilience"`

	// Store configures the SQLite persistence gateway.
	Store StoreConfig `yaml:"store"`

	// Auth configures inbound API key authentication.
	Auth AuthConfig `yaml:"auth"`

	// Quota configures the coarse per-key token bucket.
	Quota QuotaConfig `yaml:"quota"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RequestBudget is the overall deadline for one inbound chat request: every
// attempt running to its timeout plus the backoff slept between attempts.
// The chat route's timeout derives from this, not the generic write
// timeout, so deep retries are not cut off early.
func (c *Config) RequestBudget() time.Duration {
	budget := time.Duration(c.Resilience.MaxAttempts) * c.Upstream.AttemptTimeout
	for i := 1; i < c.Resilience.MaxAttempts; i++ {
		if len(c.Resilience.Backoff) == 0 {
			break
		}
		idx := i - 1
		if idx >= len(c.Resilience.Backoff) {
			idx = len(c.Resilience.Backoff) - 1
		}
		budget += c.Resilience.Backoff[idx]
	}
	return budget
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port to bind (e.g., "127.0.0.1:8080").
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Must exceed the full retry budget (sum of backoffs plus attempt
	// timeouts) or long requests are cut off mid-retry.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig configures the upstream chat service client.
type UpstreamConfig struct {
	// BaseURL is the upstream API base (e.g., "https://api.x.ai").
	BaseURL string `yaml:"base_url"`

	// Provider tags sessions and generations (e.g., "grok").
	Provider string `yaml:"provider"`

	// AttemptTimeout is the hard per-attempt deadline.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// UserAgents is the rotation list; one is chosen uniformly at random
	// per attempt. Empty falls back to a built-in Chrome list.
	UserAgents []string `yaml:"user_agents"`
}

// PoolConfig configures session classification and the health loop.
type PoolConfig struct {
	// RotationThreshold retires a session after this many uses.
	RotationThreshold int `yaml:"rotation_threshold"`

	// MaxAgeHours retires a session this long after creation.
	MaxAgeHours int `yaml:"max_age_hours"`

	// FailureThreshold quarantines a session whose failure rate reaches
	// this fraction (evaluated once usage_count >= 20).
	FailureThreshold float64 `yaml:"failure_threshold"`

	// HealthCheckInterval is the background scan period.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`

	// AcquireWait bounds how long Acquire blocks when no healthy session
	// exists before reporting no capacity.
	AcquireWait time.Duration `yaml:"acquire_wait"`

	// ImportDir, when set, is watched for cookie drop files to import.
	ImportDir string `yaml:"import_dir"`
}

// ResilienceConfig configures retry and the circuit breaker.
type ResilienceConfig struct {
	// MaxAttempts bounds upstream attempts per inbound request.
	MaxAttempts int `yaml:"max_attempts"`

	// Backoff is the per-retry sleep schedule. Attempts beyond the
	// schedule length reuse the last entry.
	Backoff []time.Duration `yaml:"backoff"`

	// CircuitFailureThreshold opens the breaker at this many terminal
	// failures within CircuitWindow.
	CircuitFailureThreshold int `yaml:"circuit_failure_threshold"`

	// CircuitWindow is the sliding window for counting terminal failures.
	CircuitWindow time.Duration `yaml:"circuit_window"`

	// CircuitRecoveryTimeout is how long the breaker stays open before
	// admitting a half-open probe.
	CircuitRecoveryTimeout time.Duration `yaml:"circuit_recovery_timeout"`
}

// StoreConfig configures the SQLite persistence gateway.
type StoreConfig struct {
	// Path is the database file path. ":memory:" is accepted for tests.
	Path string `yaml:"path"`

	// MinConnections is kept for operator familiarity with the previous
	// deployment; database/sql has no minimum, so it maps to idle conns.
	MinConnections int `yaml:"min_connections"`

	// MaxConnections bounds the connection pool.
	MaxConnections int `yaml:"max_connections"`

	// BusyTimeout is the SQLite busy handler timeout.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	WALMode bool `yaml:"wal_mode"`
}

// AuthConfig configures inbound API key authentication.
type AuthConfig struct {
	// APIKeys is a comma-separated list of accepted keys. Keys are hashed
	// at load time; the clear values are not retained.
	APIKeys string `yaml:"api_keys"`
}

// QuotaConfig configures the coarse per-key token bucket.
type QuotaConfig struct {
	// Enabled turns the bucket on.
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute is the refill rate; burst equals this value.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// StatePath, when set, persists bucket state snapshots to SQLite so
	// restarts do not reset abusers.
	StatePath string `yaml:"state_path"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metric export.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// Path is the exposition endpoint path.
	Path string `yaml:"path"`

	// Namespace prefixes all metric names.
	Namespace string `yaml:"namespace"`

	// LatencyBuckets overrides the generation latency histogram buckets.
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}
