package upstream

import (
	"context"
	"errors"
	"net"
	"strings"
)

// antiBotSignatures are the body markers that distinguish a challenge-page
// interception from an application-level answer. Derived from observed
// upstream rejections; a 403/503 carrying any of these is an anti-bot
// outcome, a bare 503 is an ordinary upstream_5xx.
var antiBotSignatures = []string{
	"cloudflare",
	"challenge",
	"just a moment",
	"rejected by anti-bot rules",
	"cf-ray",
}

// hasAntiBotSignature reports whether body carries a challenge marker.
func hasAntiBotSignature(body string) bool {
	lower := strings.ToLower(body)
	for _, sig := range antiBotSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// ClassifyResponse maps an HTTP status and (possibly truncated) body to an
// outcome. The body matters for two splits: 403 with a Cloudflare signature
// is anti_bot rather than auth_failure, and 503 with a challenge body is
// anti_bot rather than upstream_5xx.
func ClassifyResponse(status int, body string) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == 429:
		return OutcomeRateLimit
	case status == 401:
		return OutcomeAuthFailure
	case status == 403:
		if hasAntiBotSignature(body) {
			return OutcomeAntiBot
		}
		return OutcomeAuthFailure
	case status == 503:
		if hasAntiBotSignature(body) {
			return OutcomeAntiBot
		}
		return OutcomeUpstream5xx
	case status == 400 || status == 404 || status == 422:
		return OutcomeClientError
	case status >= 500:
		return OutcomeUpstream5xx
	default:
		if strings.Contains(strings.ToLower(body), "rate limit") {
			return OutcomeRateLimit
		}
		return OutcomeClientError
	}
}

// ClassifyError maps a transport-level error to an outcome. Timeouts,
// refused connections, TLS failures, and caller cancellation all classify
// as transport_error; a reset mid-stream after a 2xx is upstream_5xx and is
// handled by the stream reader.
func ClassifyError(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return OutcomeTransportError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTransportError
	}
	return OutcomeTransportError
}
