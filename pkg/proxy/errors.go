package proxy

import (
	"context"
	"errors"
	"fmt"

	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/resilience"
	"corvus-hq/rookery/pkg/session"
	"corvus-hq/rookery/pkg/upstream"
)

// MapExecuteError converts a coordinator failure into the client-facing
// error response. Snippets reaching this point are already redacted.
func MapExecuteError(err error, requestID string) *types.ErrorResponse {
	var rejected *resilience.RejectedError
	var exhausted *resilience.ExhaustedError

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return types.NewErrorResponse(types.ErrorTypeServiceUnavailable,
			"upstream temporarily unavailable, retry later", requestID)

	case errors.Is(err, session.ErrNoCapacity):
		return types.NewErrorResponse(types.ErrorTypeNoHealthySessions,
			"no healthy upstream sessions available", requestID)

	case errors.As(err, &rejected):
		msg := "upstream rejected the request"
		if rejected.Snippet != "" {
			msg = fmt.Sprintf("upstream rejected the request: %s", rejected.Snippet)
		}
		return types.NewErrorResponse(types.ErrorTypeUpstreamRejected, msg, requestID)

	case errors.As(err, &exhausted):
		switch exhausted.LastOutcome {
		case upstream.OutcomeRateLimit:
			return types.NewErrorResponse(types.ErrorTypeRateLimited,
				"upstream rate limited all attempts, retry later", requestID)
		case upstream.OutcomeTransportError:
			return types.NewErrorResponse(types.ErrorTypeUpstreamTimeout,
				"upstream did not respond in time", requestID)
		default:
			return types.NewErrorResponse(types.ErrorTypeServiceUnavailable,
				fmt.Sprintf("all %d upstream attempts failed", exhausted.Attempts), requestID)
		}

	case errors.Is(err, context.Canceled):
		return types.NewErrorResponse(types.ErrorTypeValidation,
			"request canceled by client", requestID)

	case errors.Is(err, context.DeadlineExceeded):
		return types.NewErrorResponse(types.ErrorTypeUpstreamTimeout,
			"request deadline exceeded", requestID)

	default:
		return types.NewErrorResponse(types.ErrorTypeInternal,
			"an internal error occurred", requestID)
	}
}
