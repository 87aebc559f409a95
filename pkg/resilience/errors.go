package resilience

import (
	"errors"
	"fmt"

	"corvus-hq/rookery/pkg/upstream"
)

// ErrCircuitOpen is returned when the breaker short-circuits a request
// before any session is touched. Maps to 503 service_unavailable.
var ErrCircuitOpen = errors.New("upstream circuit open")

// ExhaustedError reports that every permitted attempt failed. The last
// outcome decides the HTTP mapping: rate_limit maps to 429, transport
// timeouts to 504, everything else to 503.
type ExhaustedError struct {
	Attempts    int
	LastOutcome upstream.Outcome
	LastStatus  int
	Snippet     string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("upstream attempts exhausted after %d tries, last outcome %s", e.Attempts, e.LastOutcome)
}

// RejectedError reports that the upstream rejected the request payload
// itself. Not retried; maps to 422 upstream_rejected.
type RejectedError struct {
	Status  int
	Snippet string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request with status %d", e.Status)
}
