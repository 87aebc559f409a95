package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"corvus-hq/rookery/pkg/proxy/types"
)

// maxRequestBodySize caps inbound bodies at 10MB.
const maxRequestBodySize = 10 * 1024 * 1024

// RequestError is a parse or validation failure. Maps to 400.
type RequestError struct {
	Message string
	Param   string
}

func (e *RequestError) Error() string { return e.Message }

// ParseChatCompletionRequest decodes and validates a chat completion body.
func ParseChatCompletionRequest(r *http.Request) (*types.ChatCompletionRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return nil, &RequestError{Message: "failed to read request body", Param: "body"}
	}
	if len(body) > maxRequestBodySize {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxRequestBodySize),
			Param:   "body",
		}
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("invalid JSON: %v", err), Param: "body"}
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func validateRequest(req *types.ChatCompletionRequest) error {
	if req.Model == "" {
		return &RequestError{Message: "model is required", Param: "model"}
	}
	if len(req.Messages) == 0 {
		return &RequestError{Message: "messages must not be empty", Param: "messages"}
	}
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system", "user", "assistant", "tool":
		default:
			return &RequestError{
				Message: fmt.Sprintf("messages[%d].role %q is not valid", i, msg.Role),
				Param:   "messages",
			}
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &RequestError{Message: "temperature must be between 0 and 2", Param: "temperature"}
	}
	if req.TopP != nil && (*req.TopP <= 0 || *req.TopP > 1) {
		return &RequestError{Message: "top_p must be in (0, 1]", Param: "top_p"}
	}
	if mot := req.EffectiveMaxOutputTokens(); mot != nil && *mot <= 0 {
		return &RequestError{Message: "max_output_tokens must be positive", Param: "max_output_tokens"}
	}
	return nil
}
