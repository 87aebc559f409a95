package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, applies defaults and environment
// overrides, and validates the result. If path is empty, the configuration is
// built from defaults and environment variables alone.
//
// The loading sequence is:
//  1. Start from boolean-true defaults (so YAML `false` can override them)
//  2. Unmarshal YAML from file
//  3. Apply remaining defaults
//  4. Apply ROOKERY_* environment overrides
//  5. Validate the final configuration
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Booleans whose default is true must be set before unmarshal; a zero
	// value after unmarshal is indistinguishable from an explicit false.
	cfg.Store.WALMode = DefaultStoreWALMode
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format ROOKERY_SECTION_FIELD and always
// take precedence over file-based configuration.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if val := os.Getenv(key); val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				*dst = f
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}
	// Durations accept Go duration syntax ("45s") or a bare number of
	// seconds, which is what the previous deployment used.
	setDuration := func(key string, dst *time.Duration) {
		val := os.Getenv(key)
		if val == "" {
			return
		}
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
			return
		}
		if secs, err := strconv.Atoi(val); err == nil {
			*dst = time.Duration(secs) * time.Second
		}
	}

	setString("ROOKERY_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("ROOKERY_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("ROOKERY_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("ROOKERY_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("ROOKERY_UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	setString("ROOKERY_UPSTREAM_PROVIDER", &cfg.Upstream.Provider)
	setDuration("ROOKERY_UPSTREAM_ATTEMPT_TIMEOUT_SECONDS", &cfg.Upstream.AttemptTimeout)

	setInt("ROOKERY_SESSION_ROTATION_THRESHOLD", &cfg.Pool.RotationThreshold)
	setInt("ROOKERY_SESSION_MAX_AGE_HOURS", &cfg.Pool.MaxAgeHours)
	setFloat("ROOKERY_SESSION_FAILURE_THRESHOLD", &cfg.Pool.FailureThreshold)
	setDuration("ROOKERY_SESSION_HEALTH_CHECK_INTERVAL_SECONDS", &cfg.Pool.HealthCheckInterval)
	setDuration("ROOKERY_SESSION_ACQUIRE_WAIT_SECONDS", &cfg.Pool.AcquireWait)
	setString("ROOKERY_SESSION_IMPORT_DIR", &cfg.Pool.ImportDir)

	setInt("ROOKERY_MAX_ATTEMPTS", &cfg.Resilience.MaxAttempts)
	setInt("ROOKERY_CIRCUIT_FAILURE_THRESHOLD", &cfg.Resilience.CircuitFailureThreshold)
	setDuration("ROOKERY_CIRCUIT_WINDOW_SECONDS", &cfg.Resilience.CircuitWindow)
	setDuration("ROOKERY_CIRCUIT_RECOVERY_TIMEOUT_SECONDS", &cfg.Resilience.CircuitRecoveryTimeout)

	setString("ROOKERY_STORE_PATH", &cfg.Store.Path)
	setInt("ROOKERY_STORE_MIN_CONNECTIONS", &cfg.Store.MinConnections)
	setInt("ROOKERY_STORE_MAX_CONNECTIONS", &cfg.Store.MaxConnections)

	setString("ROOKERY_API_KEYS", &cfg.Auth.APIKeys)

	setBool("ROOKERY_QUOTA_ENABLED", &cfg.Quota.Enabled)
	setInt("ROOKERY_QUOTA_REQUESTS_PER_MINUTE", &cfg.Quota.RequestsPerMinute)

	setString("ROOKERY_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("ROOKERY_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("ROOKERY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)

	if val := os.Getenv("ROOKERY_UPSTREAM_USER_AGENTS"); val != "" {
		var agents []string
		for _, ua := range strings.Split(val, "\n") {
			if ua = strings.TrimSpace(ua); ua != "" {
				agents = append(agents, ua)
			}
		}
		if len(agents) > 0 {
			cfg.Upstream.UserAgents = agents
		}
	}
}

// APIKeyList splits the configured comma-separated key list, trimming
// whitespace and dropping empty entries.
func (c *AuthConfig) APIKeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
