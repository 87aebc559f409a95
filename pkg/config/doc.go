// Package config defines the immutable runtime configuration for Rookery.
//
// Configuration is loaded once at startup from a YAML file, with defaults
// applied for unset fields and ROOKERY_* environment variables taking
// precedence over file values. The resulting Config is never mutated after
// Load returns; operational changes require a restart, which keeps every
// component free of runtime re-read races.
//
// Example:
//
//	cfg, err := config.Load("rookery.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
