package types

// ErrorResponse is the body returned for every error condition:
// {"error": {"type": ..., "message": ..., "request_id": ...}}.
// The message never contains cookie material; anything derived from an
// upstream error passes through the telemetry redactor first.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Type categorizes the error. See the ErrorType* constants.
	Type string `json:"type"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// RequestID identifies the inbound request the error belongs to.
	RequestID string `json:"request_id,omitempty"`
}

// Error type constants for the proxy error taxonomy.
const (
	// ErrorTypeValidation indicates a malformed or incomplete request (400).
	ErrorTypeValidation = "validation_error"

	// ErrorTypeAuthenticationRequired indicates a missing or invalid API key (401).
	ErrorTypeAuthenticationRequired = "authentication_required"

	// ErrorTypeNoHealthySessions indicates the pool has no usable session (503).
	// This is a capacity signal, not an upstream health signal.
	ErrorTypeNoHealthySessions = "no_healthy_sessions"

	// ErrorTypeServiceUnavailable indicates the circuit breaker is open (503).
	ErrorTypeServiceUnavailable = "service_unavailable"

	// ErrorTypeUpstreamTimeout indicates the upstream attempt deadline elapsed (504).
	ErrorTypeUpstreamTimeout = "upstream_timeout"

	// ErrorTypeUpstreamRejected indicates a terminal client-class upstream
	// response that is surfaced without retry (mapped 4xx).
	ErrorTypeUpstreamRejected = "upstream_rejected"

	// ErrorTypeRateLimited indicates the caller exhausted its token bucket (429).
	ErrorTypeRateLimited = "rate_limited"

	// ErrorTypePersistenceUnavailable indicates the store is unreachable.
	// Requests continue; this type only appears in logs and admin responses.
	ErrorTypePersistenceUnavailable = "persistence_unavailable"

	// ErrorTypeNotFound indicates a missing admin resource (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeConflict indicates a duplicate resource or an illegal
	// session status transition (409).
	ErrorTypeConflict = "conflict"

	// ErrorTypeInternal indicates an unexpected server-side failure (500).
	ErrorTypeInternal = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(errorType, message, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Type:      errorType,
			Message:   message,
			RequestID: requestID,
		},
	}
}

// HTTPStatusCode returns the HTTP status mapped to the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeAuthenticationRequired:
		return 401
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeConflict:
		return 409
	case ErrorTypeUpstreamRejected:
		return 422
	case ErrorTypeRateLimited:
		return 429
	case ErrorTypeNoHealthySessions, ErrorTypeServiceUnavailable:
		return 503
	case ErrorTypeUpstreamTimeout:
		return 504
	default:
		return 500
	}
}
