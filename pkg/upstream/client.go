package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

const (
	chatCompletionsPath = "/v1/chat/completions"

	// errorBodyLimit bounds how much of a non-2xx body is read for
	// classification and the persisted snippet.
	errorBodyLimit = 8 * 1024
)

// Result is the full record of one upstream attempt: the outcome class, the
// accumulated message, the final usage, and enough of the failure surface to
// persist and log.
type Result struct {
	Outcome    Outcome
	StatusCode int

	// LatencyMs is wall-clock from dispatch to the last byte of the stream
	// (success) or to the first error signal.
	LatencyMs int64

	// Content and ReasoningContent are the accumulated message. Deltas
	// preserves the original chunking for callers re-emitting a stream.
	Content          string
	ReasoningContent string
	FinishReason     string
	Deltas           []types.Delta

	Usage          types.Usage
	NumSourcesUsed int

	// UserAgent is the rotation pick used for this attempt, recorded on the
	// generation row.
	UserAgent string

	// ErrorSnippet is a redacted, truncated excerpt of the failure body or
	// transport error. Empty on success.
	ErrorSnippet string

	// Err is the underlying transport error, if any. Outcome is
	// authoritative for classification; Err is for logging.
	Err error
}

// upstreamRequest is the body sent upstream. Streaming is always requested;
// the caller decides whether to re-emit chunks or return a buffered response.
type upstreamRequest struct {
	Model             string          `json:"model"`
	Messages          []types.Message `json:"messages"`
	Temperature       *float64        `json:"temperature,omitempty"`
	TopP              *float64        `json:"top_p,omitempty"`
	MaxTokens         *int            `json:"max_tokens,omitempty"`
	Stream            bool            `json:"stream"`
	Tools             []types.Tool    `json:"tools,omitempty"`
	ToolChoice        interface{}     `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool           `json:"parallel_tool_calls,omitempty"`
}

// Client executes single attempts against the upstream chat service. It is
// stateless across attempts; rotation, retry, and breaker logic live above
// it in the resilience coordinator.
type Client struct {
	cfg        config.UpstreamConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds an upstream client from configuration. The transport
// pools connections across attempts; per-attempt deadlines come from the
// request context, not the http.Client timeout.
func NewClient(cfg config.UpstreamConfig, logger *logging.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// Complete executes one upstream attempt with the given session cookie. It
// never returns a nil Result; classification failures are folded into the
// Outcome. The cookie text is forwarded verbatim as the Cookie header.
func (c *Client) Complete(ctx context.Context, req *types.ChatCompletionRequest, cookieText string) *Result {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	userAgent := pickUserAgent(c.cfg.UserAgents)
	result := &Result{UserAgent: userAgent}

	body := upstreamRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      true,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}
	if max := req.EffectiveMaxOutputTokens(); max != nil {
		body.MaxTokens = max
	}
	if req.ParallelToolCalls != nil {
		body.ParallelToolCalls = req.ParallelToolCalls
	}

	payload, err := json.Marshal(body)
	if err != nil {
		result.Outcome = OutcomeClientError
		result.Err = fmt.Errorf("encoding upstream request: %w", err)
		result.ErrorSnippet = result.Err.Error()
		return result
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		result.Outcome = OutcomeClientError
		result.Err = fmt.Errorf("building upstream request: %w", err)
		result.ErrorSnippet = result.Err.Error()
		return result
	}

	httpReq.Header = fingerprintHeaders(userAgent, c.cfg.BaseURL)
	httpReq.Header.Set("Cookie", cookieText)

	c.logger.DebugContext(ctx, "dispatching upstream attempt",
		"model", req.Model,
		"message_count", len(req.Messages),
		"user_agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		result.LatencyMs = time.Since(start).Milliseconds()
		result.Outcome = ClassifyError(err)
		result.Err = err
		result.ErrorSnippet = logging.Snippet(err.Error(), 500)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		result.LatencyMs = time.Since(start).Milliseconds()
		result.Outcome = ClassifyResponse(resp.StatusCode, string(raw))
		result.ErrorSnippet = logging.Snippet(string(raw), 500)
		return result
	}

	acc := &streamAccumulator{}
	if err := acc.consumeStream(attemptCtx, resp.Body); err != nil {
		// A reset after a 2xx is an upstream failure, not a client one,
		// unless the caller's own deadline fired.
		result.LatencyMs = time.Since(start).Milliseconds()
		if attemptCtx.Err() != nil {
			result.Outcome = OutcomeTransportError
		} else {
			result.Outcome = OutcomeUpstream5xx
		}
		result.Err = err
		result.ErrorSnippet = logging.Snippet(err.Error(), 500)
		return result
	}
	result.LatencyMs = time.Since(start).Milliseconds()

	if acc.upstreamError != nil {
		// An in-band error frame on a 2xx stream. Classify by message.
		msg := acc.upstreamError.Message
		result.Outcome = classifyInBandError(msg)
		result.ErrorSnippet = logging.Snippet(msg, 500)
		return result
	}

	result.Outcome = OutcomeSuccess
	result.Content = acc.content.String()
	result.ReasoningContent = acc.reasoning.String()
	result.FinishReason = acc.finishReason
	if result.FinishReason == "" {
		result.FinishReason = "stop"
	}
	result.Deltas = acc.deltas
	if acc.usage != nil {
		result.Usage = acc.usage.toUsage()
		result.NumSourcesUsed = acc.numSourcesUsed
	}
	return result
}

// classifyInBandError maps an error frame delivered inside a 2xx stream to
// an outcome using the same body signatures as status classification. The
// default is upstream_5xx: an error the upstream only surfaced after
// accepting the request is its failure, not the caller's.
func classifyInBandError(message string) Outcome {
	lower := strings.ToLower(message)
	switch {
	case hasAntiBotSignature(message):
		return OutcomeAntiBot
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return OutcomeRateLimit
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden"):
		return OutcomeAuthFailure
	default:
		return OutcomeUpstream5xx
	}
}
