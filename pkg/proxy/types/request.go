package types

import (
	"encoding/json"
	"strings"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion request.
// This matches the OpenAI Chat Completions API format so existing OpenAI SDKs
// and tools can point at Rookery without modification.
type ChatCompletionRequest struct {
	// Model is the ID of the upstream model to use (e.g., "grok-3").
	Model string `json:"model"`

	// Messages is the conversation history as a list of messages.
	Messages []Message `json:"messages"`

	// Temperature controls randomness in the response (0.0 to 2.0).
	// Optional, defaults to upstream behavior.
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	// Alternative to temperature. Optional.
	TopP *float64 `json:"top_p,omitempty"`

	// MaxOutputTokens is the maximum number of tokens to generate.
	// Accepted under both the legacy and the responses-style field name.
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`

	// MaxTokens is the legacy alias for MaxOutputTokens.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Stream enables server-sent events (SSE) streaming.
	// Optional, defaults to false.
	Stream bool `json:"stream,omitempty"`

	// Tools is a list of tools/functions the model can call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls which tool the model should use.
	// Can be "none", "auto", or an explicit {"type":"function",...} object.
	ToolChoice interface{} `json:"tool_choice,omitempty"`

	// ParallelToolCalls allows the model to call several tools in one turn.
	// Optional, defaults to true.
	ParallelToolCalls *bool `json:"parallel_tool_calls,omitempty"`

	// User is a unique identifier for the end-user making the request.
	User string `json:"user,omitempty"`
}

// EffectiveMaxOutputTokens resolves the two accepted field names, preferring
// max_output_tokens when both are present.
func (r *ChatCompletionRequest) EffectiveMaxOutputTokens() *int {
	if r.MaxOutputTokens != nil {
		return r.MaxOutputTokens
	}
	return r.MaxTokens
}

// EffectiveParallelToolCalls returns the parallel_tool_calls setting,
// defaulting to true when unset.
func (r *ChatCompletionRequest) EffectiveParallelToolCalls() bool {
	if r.ParallelToolCalls == nil {
		return true
	}
	return *r.ParallelToolCalls
}

// ToolChoiceString normalizes tool_choice to a string for persistence.
// Explicit object forms are serialized as compact JSON.
func (r *ChatCompletionRequest) ToolChoiceString() string {
	switch v := r.ToolChoice.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the author of the message ("system", "user", "assistant", or "tool").
	Role string `json:"role"`

	// Content is the text content of the message.
	// Can be a string or an array of content parts (text / image_url).
	Content interface{} `json:"content"`

	// Name is the name of the author (optional).
	Name string `json:"name,omitempty"`

	// ToolCalls is a list of tool calls made by the assistant (optional).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is the ID of the tool call this message is responding to.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ContentText flattens message content to plain text. String content is
// returned as-is; part arrays contribute their text parts joined by a space.
// image_url parts are skipped.
func (m *Message) ContentText() string {
	switch v := m.Content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var parts []string
		for _, p := range v {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if pm["type"] != "text" {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// Tool represents a function/tool that the model can call.
type Tool struct {
	// Type is always "function" for function calling.
	Type string `json:"type"`

	// Function describes the function to call.
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a function that can be called by the model.
type FunctionDefinition struct {
	// Name is the name of the function to call.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters.
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolCall represents a function call made by the model.
type ToolCall struct {
	// ID is a unique identifier for the tool call.
	ID string `json:"id"`

	// Type is always "function" for function calling.
	Type string `json:"type"`

	// Function contains the function name and arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall represents the function name and arguments.
type FunctionCall struct {
	// Name is the function name.
	Name string `json:"name"`

	// Arguments is a JSON-encoded string of the function arguments.
	Arguments string `json:"arguments"`
}
