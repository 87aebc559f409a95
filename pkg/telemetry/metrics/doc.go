// Package metrics exposes the proxy's Prometheus metrics: request results,
// generation latency, pool composition, rotation reasons, attempt outcomes,
// and the circuit breaker state. The collector registers against a private
// registry and satisfies the recorder interfaces of the session pool and
// resilience coordinator.
package metrics
