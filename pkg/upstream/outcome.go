package upstream

// Outcome classifies one upstream attempt. Exactly one class applies per
// attempt; the resilience coordinator and session pool key their behavior
// off it.
type Outcome string

const (
	// OutcomeSuccess: 2xx and the stream completed without error.
	OutcomeSuccess Outcome = "success"

	// OutcomeRateLimit: 429, or the body mentions a rate limit. The
	// session itself is fine; the coordinator rotates to the next one.
	OutcomeRateLimit Outcome = "rate_limit"

	// OutcomeAuthFailure: 401, or 403 without an anti-bot signature.
	// Proposes quarantine on release.
	OutcomeAuthFailure Outcome = "auth_failure"

	// OutcomeAntiBot: 403 with a Cloudflare signature, or 503 with a
	// challenge body. Proposes quarantine after a consecutive threshold.
	OutcomeAntiBot Outcome = "anti_bot"

	// OutcomeUpstream5xx: 500/502/504, or a 503 without a challenge body,
	// or a network reset mid-stream.
	OutcomeUpstream5xx Outcome = "upstream_5xx"

	// OutcomeClientError: 400/404/422. Not retried; surfaced to the caller.
	OutcomeClientError Outcome = "client_error"

	// OutcomeTransportError: connection refused, TLS failure, or timeout.
	OutcomeTransportError Outcome = "transport_error"
)

// Retryable reports whether the coordinator should rotate to another
// session after this outcome.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeRateLimit, OutcomeAuthFailure, OutcomeAntiBot,
		OutcomeUpstream5xx, OutcomeTransportError:
		return true
	}
	return false
}

// CountsAsSuccess reports whether the outcome increments the session's
// success counter on release.
func (o Outcome) CountsAsSuccess() bool {
	return o == OutcomeSuccess
}
