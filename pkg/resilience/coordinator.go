package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/costs"
	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/security/auth"
	"corvus-hq/rookery/pkg/session"
	"corvus-hq/rookery/pkg/store"
	"corvus-hq/rookery/pkg/telemetry/logging"
	"corvus-hq/rookery/pkg/upstream"
)

// AttemptClient executes one upstream attempt. *upstream.Client is the
// production implementation.
type AttemptClient interface {
	Complete(ctx context.Context, req *types.ChatCompletionRequest, cookieText string) *upstream.Result
}

// SessionPool is the slice of the pool the coordinator needs.
type SessionPool interface {
	Acquire(ctx context.Context, exclude map[string]bool) (*store.Session, error)
	Release(ctx context.Context, id string, outcome upstream.Outcome, latencyMs int64) error
}

// Recorder receives coordinator telemetry. The metrics collector implements
// it; nil disables emission.
type Recorder interface {
	// Attempt counts one upstream attempt, labeled by outcome.
	Attempt(outcome string)

	// CircuitState sets the circuit state gauge.
	CircuitState(state string)
}

type nopRecorder struct{}

func (nopRecorder) Attempt(string)      {}
func (nopRecorder) CircuitState(string) {}

// Coordinator drives one inbound request through session rotation, retry
// backoff, and the circuit breaker, and persists exactly one generation row
// per attempted request regardless of how many attempts it took. Requests
// refused before any upstream attempt leave no row.
type Coordinator struct {
	pool     SessionPool
	client   AttemptClient
	gateway  store.Gateway
	breaker  *Breaker
	cfg      config.ResilienceConfig
	provider string
	pricing  *costs.Calculator
	logger   *logging.Logger
	recorder Recorder

	// sleep is replaceable in tests to compress the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCoordinator wires the coordinator. A nil recorder disables metrics.
func NewCoordinator(pool SessionPool, client AttemptClient, gateway store.Gateway, cfg config.ResilienceConfig, provider string, logger *logging.Logger, recorder Recorder) *Coordinator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Coordinator{
		pool:     pool,
		client:   client,
		gateway:  gateway,
		breaker:  NewBreaker(cfg.CircuitFailureThreshold, cfg.CircuitWindow, cfg.CircuitRecoveryTimeout),
		cfg:      cfg,
		provider: provider,
		pricing:  costs.NewCalculator(),
		logger:   logger,
		recorder: recorder,
		sleep:    sleepCtx,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Coordinator) Breaker() *Breaker {
	return c.breaker
}

// Execute runs the request to a terminal result: a successful upstream
// Result, or one of ErrCircuitOpen, session.ErrNoCapacity, *RejectedError,
// *ExhaustedError, or the caller's context error.
func (c *Coordinator) Execute(ctx context.Context, req *types.ChatCompletionRequest) (*upstream.Result, error) {
	allowed, probe := c.breaker.Admit()
	if !allowed {
		c.publishCircuitState()
		c.logger.WarnContext(ctx, "request short-circuited, circuit open")
		return nil, ErrCircuitOpen
	}
	c.publishCircuitState()

	// A granted probe slot must always resolve. When this request ends
	// without an upstream verdict (cancellation, pool exhaustion) the slot
	// is returned so the next request can probe.
	verdict := false
	if probe {
		defer func() {
			if !verdict {
				c.breaker.ReleaseProbe()
				c.publishCircuitState()
			}
		}()
	}

	tried := make(map[string]bool)
	var last *upstream.Result
	var lastSessionID string

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		sess, err := c.pool.Acquire(ctx, tried)
		if err != nil {
			if errors.Is(err, session.ErrNoCapacity) {
				// Pool exhaustion says nothing about upstream health;
				// the breaker does not count it.
				c.logger.WarnContext(ctx, "no healthy sessions available",
					"attempt", attempt, "tried", len(tried))
				if last != nil {
					c.persist(ctx, req, lastSessionID, last, "no healthy sessions")
				}
				return nil, err
			}
			if last != nil {
				c.persist(ctx, req, lastSessionID, last, err.Error())
			}
			return nil, err
		}
		tried[sess.ID] = true

		result := c.client.Complete(ctx, req, sess.CookieText)
		last, lastSessionID = result, sess.ID

		c.recorder.Attempt(string(result.Outcome))
		c.logger.InfoContext(ctx, "upstream attempt finished",
			"attempt", attempt,
			"session_id", sess.ID,
			"outcome", string(result.Outcome),
			"latency_ms", result.LatencyMs,
			"upstream_status", result.StatusCode,
			"error", result.ErrorSnippet)

		if err := c.pool.Release(ctx, sess.ID, result.Outcome, result.LatencyMs); err != nil {
			c.logger.ErrorContext(ctx, "session release failed",
				"session_id", sess.ID, "error", err)
		}

		switch result.Outcome {
		case upstream.OutcomeSuccess:
			verdict = true
			c.breaker.RecordSuccess()
			c.publishCircuitState()
			genID := c.persist(ctx, req, sess.ID, result, "")
			c.persistTokenUsage(ctx, genID, sess.ID, req.Model, result)
			return result, nil
		case upstream.OutcomeClientError:
			// The upstream answered; that is a healthy upstream even
			// though it rejected this payload.
			verdict = true
			c.breaker.RecordSuccess()
			c.publishCircuitState()
			c.persist(ctx, req, sess.ID, result, result.ErrorSnippet)
			return nil, &RejectedError{Status: result.StatusCode, Snippet: result.ErrorSnippet}
		}

		if ctx.Err() != nil {
			c.persist(ctx, req, sess.ID, result, "canceled: "+ctx.Err().Error())
			return nil, ctx.Err()
		}

		if attempt < c.cfg.MaxAttempts {
			backoff := c.backoffFor(attempt)
			c.logger.DebugContext(ctx, "retrying after backoff",
				"attempt", attempt, "backoff", backoff.String())
			if err := c.sleep(ctx, backoff); err != nil {
				c.persist(ctx, req, sess.ID, result, "canceled: "+err.Error())
				return nil, err
			}
		}
	}

	verdict = true
	c.breaker.RecordFailure()
	c.publishCircuitState()
	c.persist(ctx, req, lastSessionID, last, last.ErrorSnippet)
	return nil, &ExhaustedError{
		Attempts:    c.cfg.MaxAttempts,
		LastOutcome: last.Outcome,
		LastStatus:  last.StatusCode,
		Snippet:     last.ErrorSnippet,
	}
}

// backoffFor returns the sleep before the attempt after n. Attempts beyond
// the schedule reuse the last entry.
func (c *Coordinator) backoffFor(attempt int) time.Duration {
	schedule := c.cfg.Backoff
	if len(schedule) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

// persist writes the single generation row for this request. A store outage
// is a telemetry gap, never a request failure. Returns the generation id,
// empty when persistence failed.
func (c *Coordinator) persist(ctx context.Context, req *types.ChatCompletionRequest, sessionID string, result *upstream.Result, errMsg string) string {
	row := &store.Generation{
		RequestID:         logging.GetRequestID(ctx),
		SessionID:         sessionID,
		Provider:          c.provider,
		Model:             req.Model,
		Prompt:            marshalPrompt(req.Messages),
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		MaxOutputTokens:   req.EffectiveMaxOutputTokens(),
		ToolChoice:        req.ToolChoiceString(),
		ParallelToolCalls: req.EffectiveParallelToolCalls(),
		ErrorMessage:      errMsg,
	}
	if result != nil {
		row.ResponseText = result.Content
		row.ReasoningContent = result.ReasoningContent
		row.FinishReason = result.FinishReason
		row.Status = result.StatusCode
		row.LatencyMs = result.LatencyMs
		row.PromptTokens = result.Usage.PromptTokens
		row.ResponseTokens = result.Usage.CompletionTokens
		row.NumSourcesUsed = result.NumSourcesUsed
		if d := result.Usage.PromptTokensDetails; d != nil {
			row.AudioTokens += d.AudioTokens
			row.ImageTokens = d.ImageTokens
			row.CachedTokens = d.CachedTokens
		}
		if d := result.Usage.CompletionTokensDetails; d != nil {
			row.ReasoningTokens = d.ReasoningTokens
			row.AudioTokens += d.AudioTokens
			row.AcceptedPredictionTokens = d.AcceptedPredictionTokens
			row.RejectedPredictionTokens = d.RejectedPredictionTokens
		}
	}

	id, err := c.gateway.InsertGeneration(ctx, row)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			c.logger.WarnContext(ctx, "generation not persisted, store unavailable")
		} else {
			c.logger.ErrorContext(ctx, "generation persistence failed", "error", err)
		}
		return ""
	}
	return id
}

// persistTokenUsage writes the accounting row for a successful generation.
func (c *Coordinator) persistTokenUsage(ctx context.Context, generationID, sessionID, model string, result *upstream.Result) {
	if generationID == "" {
		return
	}

	usage := result.Usage
	row := &store.TokenUsage{
		GenerationID:      generationID,
		UserID:            auth.KeyIDFromContext(ctx),
		SessionID:         sessionID,
		Provider:          c.provider,
		Model:             model,
		PromptTotalTokens: usage.PromptTokens,
		TotalTokens:       usage.TotalTokens,
	}
	row.CompletionTotalTokens = usage.CompletionTokens
	cached := 0
	if d := usage.PromptTokensDetails; d != nil {
		row.PromptTextTokens = d.TextTokens
		row.PromptAudioTokens = d.AudioTokens
		row.PromptImageTokens = d.ImageTokens
		row.PromptCachedTokens = d.CachedTokens
		cached = d.CachedTokens
	}
	if d := usage.CompletionTokensDetails; d != nil {
		row.CompletionReasoningTokens = d.ReasoningTokens
		row.CompletionAudioTokens = d.AudioTokens
		row.CompletionAcceptedPredictionTokens = d.AcceptedPredictionTokens
		row.CompletionRejectedPredictionTokens = d.RejectedPredictionTokens
		row.CompletionTextTokens = usage.CompletionTokens - d.ReasoningTokens - d.AudioTokens
		if row.CompletionTextTokens < 0 {
			row.CompletionTextTokens = 0
		}
	} else {
		row.CompletionTextTokens = usage.CompletionTokens
	}

	row.PromptCostMicroUSD, row.CompletionCostMicroUSD, row.TotalCostMicroUSD =
		c.pricing.Costs(model, usage.PromptTokens, cached, usage.CompletionTokens)

	if _, err := c.gateway.InsertTokenUsage(ctx, row); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			c.logger.WarnContext(ctx, "token usage not persisted, store unavailable")
		} else {
			c.logger.ErrorContext(ctx, "token usage persistence failed", "error", err)
		}
	}
}

// publishCircuitState refreshes the circuit state gauge.
func (c *Coordinator) publishCircuitState() {
	c.recorder.CircuitState(c.breaker.State().String())
}

// marshalPrompt snapshots the request messages for the generation row.
func marshalPrompt(messages []types.Message) string {
	raw, err := json.Marshal(messages)
	if err != nil {
		return ""
	}
	return string(raw)
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
