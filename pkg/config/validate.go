package config

import (
	"fmt"
	"net"
	"net/url"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not host:port: %w", cfg.Server.ListenAddress, err)
	}

	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q is not a valid URL", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Provider == "" {
		return fmt.Errorf("upstream.provider must not be empty")
	}
	if cfg.Upstream.AttemptTimeout <= 0 {
		return fmt.Errorf("upstream.attempt_timeout must be positive")
	}

	if cfg.Pool.RotationThreshold < 1 {
		return fmt.Errorf("pool.rotation_threshold must be at least 1, got %d", cfg.Pool.RotationThreshold)
	}
	if cfg.Pool.MaxAgeHours < 1 {
		return fmt.Errorf("pool.max_age_hours must be at least 1, got %d", cfg.Pool.MaxAgeHours)
	}
	if cfg.Pool.FailureThreshold <= 0 || cfg.Pool.FailureThreshold > 1 {
		return fmt.Errorf("pool.failure_threshold must be in (0, 1], got %g", cfg.Pool.FailureThreshold)
	}
	if cfg.Pool.HealthCheckInterval <= 0 {
		return fmt.Errorf("pool.health_check_interval must be positive")
	}

	if cfg.Resilience.MaxAttempts < 1 {
		return fmt.Errorf("resilience.max_attempts must be at least 1, got %d", cfg.Resilience.MaxAttempts)
	}
	for i, b := range cfg.Resilience.Backoff {
		if b < 0 {
			return fmt.Errorf("resilience.backoff[%d] must not be negative", i)
		}
	}
	if cfg.Resilience.CircuitFailureThreshold < 1 {
		return fmt.Errorf("resilience.circuit_failure_threshold must be at least 1")
	}
	if cfg.Resilience.CircuitWindow <= 0 {
		return fmt.Errorf("resilience.circuit_window must be positive")
	}
	if cfg.Resilience.CircuitRecoveryTimeout <= 0 {
		return fmt.Errorf("resilience.circuit_recovery_timeout must be positive")
	}

	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if cfg.Store.MaxConnections < 1 {
		return fmt.Errorf("store.max_connections must be at least 1")
	}
	if cfg.Store.MinConnections > cfg.Store.MaxConnections {
		return fmt.Errorf("store.min_connections (%d) exceeds max_connections (%d)",
			cfg.Store.MinConnections, cfg.Store.MaxConnections)
	}

	if len(cfg.Auth.APIKeyList()) == 0 {
		return fmt.Errorf("auth.api_keys must contain at least one key")
	}

	if cfg.Quota.Enabled && cfg.Quota.RequestsPerMinute < 1 {
		return fmt.Errorf("quota.requests_per_minute must be at least 1 when quota is enabled")
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q is not one of debug, info, warn, error", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q is not one of json, text", cfg.Telemetry.Logging.Format)
	}

	return nil
}
