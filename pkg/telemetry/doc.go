// Package telemetry provides observability for Rookery.
//
// Subpackages:
//
//   - logging: structured slog-based logging with credential redaction
//   - metrics: Prometheus metric collection and exposition
//   - health: component health checks behind GET /health
//
// Cookie material and API keys are redacted before any log record is
// written; the redactor treats every value under a credential-looking key
// as secret.
package telemetry
