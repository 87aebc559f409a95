// Package types defines OpenAI-compatible request and response types for the proxy.
//
// This package contains all data transfer objects used for HTTP request and
// response handling. The types match the OpenAI Chat Completions API format,
// so clients can point standard OpenAI SDKs at Rookery without modification:
//
//	# Python OpenAI SDK
//	from openai import OpenAI
//	client = OpenAI(base_url="http://localhost:8080/v1", api_key="...")
//	response = client.chat.completions.create(
//	    model="grok-3",
//	    messages=[{"role": "user", "content": "Hello!"}]
//	)
//
// # Core Types
//
// Request types:
//   - ChatCompletionRequest: main request body for /v1/chat/completions
//   - Message: individual message; content is a string or an array of
//     text / image_url parts
//   - Tool, ToolCall: function calling definitions
//
// Response types:
//   - ChatCompletionResponse: non-streaming response
//   - ChatCompletionStreamChunk: streaming chunk (SSE)
//   - Usage: token usage including per-modality detail breakdowns
//
// Error types:
//   - ErrorResponse: {"error": {"type", "message", "request_id"}}
//
// Field names follow OpenAI's snake_case convention for JSON compatibility.
package types
