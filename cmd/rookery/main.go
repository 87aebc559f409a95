// Rookery is an OpenAI-compatible reverse proxy over a cookie-authenticated
// upstream chat service. It manages a pool of browser-cookie sessions,
// rotates them per request, retries transient upstream failures with
// progressive backoff, and trips a circuit breaker when the upstream is
// down for everyone.
//
// Usage:
//
//	# Start with default configuration
//	rookery run
//
//	# Start with a configuration file
//	rookery run --config /etc/rookery/rookery.yaml
//
//	# Validate configuration without starting
//	rookery run --dry-run
//
//	# Show version information
//	rookery version
package main

func main() {
	Execute()
}
