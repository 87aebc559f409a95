package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"corvus-hq/rookery/pkg/proxy"
	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/telemetry/logging"
	"corvus-hq/rookery/pkg/telemetry/metrics"
	"corvus-hq/rookery/pkg/upstream"
)

// Executor runs one inbound request against the upstream with retry,
// rotation, and circuit breaking. Satisfied by resilience.Coordinator.
type Executor interface {
	Execute(ctx context.Context, req *types.ChatCompletionRequest) (*upstream.Result, error)
}

// ChatHandler serves POST /v1/chat/completions. The upstream stream is
// always consumed to completion before the response is written, so retries
// never leak partial output to the client.
type ChatHandler struct {
	executor Executor
	metrics  *metrics.Collector
	logger   *logging.Logger
}

// NewChatHandler builds the chat completion handler.
func NewChatHandler(executor Executor, collector *metrics.Collector, logger *logging.Logger) *ChatHandler {
	return &ChatHandler{executor: executor, metrics: collector, logger: logger}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := logging.GetRequestID(r.Context())

	req, err := proxy.ParseChatCompletionRequest(r)
	if err != nil {
		h.writeFailure(w, types.NewErrorResponse(types.ErrorTypeValidation, err.Error(), requestID))
		return
	}

	result, err := h.executor.Execute(r.Context(), req)
	if err != nil {
		resp := proxy.MapExecuteError(err, requestID)
		h.logger.WarnContext(r.Context(), "chat completion failed",
			"model", req.Model,
			"error_type", resp.Error.Type,
			"error", err,
		)
		h.writeFailure(w, resp)
		return
	}

	h.metrics.RecordRequest("200")
	h.metrics.ObserveGenerationLatency(req.Model, float64(result.LatencyMs)/1000.0)

	responseID := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	if req.Stream {
		h.writeStream(w, req, result, responseID, created)
		return
	}
	h.writeBuffered(w, req, result, responseID, created)
}

func (h *ChatHandler) writeFailure(w http.ResponseWriter, resp *types.ErrorResponse) {
	h.metrics.RecordRequest(strconv.Itoa(resp.Error.HTTPStatusCode()))
	_ = proxy.WriteError(w, resp)
}

func (h *ChatHandler) writeBuffered(w http.ResponseWriter, req *types.ChatCompletionRequest, result *upstream.Result, responseID string, created int64) {
	resp := &types.ChatCompletionResponse{
		ID:      responseID,
		Object:  "chat.completion",
		Created: created,
		Model:   req.Model,
		Choices: []types.Choice{{
			Index: 0,
			Message: types.Message{
				Role:    "assistant",
				Content: result.Content,
			},
			FinishReason: result.FinishReason,
		}},
		Usage: result.Usage,
	}
	_ = proxy.WriteJSON(w, http.StatusOK, resp)
}

// writeStream replays the accumulated upstream deltas as SSE chunks. The
// upstream has already finished by now; clients still get the incremental
// shape OpenAI SDKs expect.
func (h *ChatHandler) writeStream(w http.ResponseWriter, req *types.ChatCompletionRequest, result *upstream.Result, responseID string, created int64) {
	proxy.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	chunk := func(delta types.Delta, finish *string, usage *types.Usage) *types.ChatCompletionStreamChunk {
		return &types.ChatCompletionStreamChunk{
			ID:      responseID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []types.StreamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
			Usage:   usage,
		}
	}

	deltas := result.Deltas
	if len(deltas) == 0 && result.Content != "" {
		deltas = []types.Delta{{Role: "assistant", Content: result.Content}}
	}
	for _, delta := range deltas {
		if err := proxy.WriteSSEChunk(w, chunk(delta, nil, nil)); err != nil {
			return
		}
	}

	finish := result.FinishReason
	usage := result.Usage
	if err := proxy.WriteSSEChunk(w, chunk(types.Delta{}, &finish, &usage)); err != nil {
		return
	}
	_ = proxy.WriteSSEDone(w)
}
