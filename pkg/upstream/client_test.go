package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewClient(config.UpstreamConfig{
		BaseURL:        baseURL,
		Provider:       "grok",
		AttemptTimeout: 5 * time.Second,
		UserAgents:     []string{"test-agent/1.0"},
	}, logger)
}

func chatRequest() *types.ChatCompletionRequest {
	return &types.ChatCompletionRequest{
		Model: "grok-4",
		Messages: []types.Message{
			{Role: "user", Content: "hello"},
		},
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotCookie, gotRequestID, gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotRequestID = r.Header.Get("x-xai-request-id")
		gotUserAgent = r.Header.Get("user-agent")

		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"role":"assistant","content":"Hi"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"content":" there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	result := c.Complete(context.Background(), chatRequest(), "sso=abc; cf_clearance=xyz")

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q (err %v)", result.Outcome, result.Err)
	}
	if result.Content != "Hi there" {
		t.Errorf("content = %q", result.Content)
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish reason = %q", result.FinishReason)
	}
	if result.Usage.TotalTokens != 5 {
		t.Errorf("total tokens = %d", result.Usage.TotalTokens)
	}
	if result.LatencyMs < 0 {
		t.Errorf("latency = %d", result.LatencyMs)
	}
	if gotCookie != "sso=abc; cf_clearance=xyz" {
		t.Errorf("cookie forwarded as %q", gotCookie)
	}
	if gotRequestID == "" {
		t.Error("x-xai-request-id not set")
	}
	if gotUserAgent != "test-agent/1.0" {
		t.Errorf("user-agent = %q", gotUserAgent)
	}
	if result.UserAgent != "test-agent/1.0" {
		t.Errorf("result user-agent = %q", result.UserAgent)
	}
}

func TestCompleteDefaultFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"content":"x"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	result := testClient(t, srv.URL).Complete(context.Background(), chatRequest(), "sso=a")
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish reason = %q, want stop", result.FinishReason)
	}
}

func TestCompleteStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Outcome
	}{
		{"rate limited", 429, "Too Many Requests", OutcomeRateLimit},
		{"auth failure", 401, "Unauthorized", OutcomeAuthFailure},
		{"anti bot", 403, "Cloudflare challenge page", OutcomeAntiBot},
		{"server error", 500, "boom", OutcomeUpstream5xx},
		{"client error", 422, "bad payload", OutcomeClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			result := testClient(t, srv.URL).Complete(context.Background(), chatRequest(), "sso=a")
			if result.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", result.Outcome, tt.want)
			}
			if result.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", result.StatusCode, tt.status)
			}
			if result.ErrorSnippet == "" {
				t.Error("error snippet empty")
			}
		})
	}
}

func TestCompleteInBandErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"error":{"message":"Too many requests"}}`+"\n\n")
	}))
	defer srv.Close()

	result := testClient(t, srv.URL).Complete(context.Background(), chatRequest(), "sso=a")
	if result.Outcome != OutcomeRateLimit {
		t.Errorf("outcome = %q, want rate_limit", result.Outcome)
	}
}

func TestCompleteConnectionRefused(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1")
	result := c.Complete(context.Background(), chatRequest(), "sso=a")
	if result.Outcome != OutcomeTransportError {
		t.Errorf("outcome = %q, want transport_error", result.Outcome)
	}
	if result.Err == nil {
		t.Error("transport error not recorded")
	}
}

func TestCompleteAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, io.Discard)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := NewClient(config.UpstreamConfig{
		BaseURL:        srv.URL,
		AttemptTimeout: 50 * time.Millisecond,
		UserAgents:     []string{"test-agent/1.0"},
	}, logger)

	result := c.Complete(context.Background(), chatRequest(), "sso=a")
	if result.Outcome != OutcomeTransportError {
		t.Errorf("outcome = %q, want transport_error", result.Outcome)
	}
}

func TestCompleteCookieNotLoggedInSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, "rejected; echo cookie: %s", r.Header.Get("Cookie"))
	}))
	defer srv.Close()

	result := testClient(t, srv.URL).Complete(context.Background(), chatRequest(), "sso=supersecretvalue")
	if result.Outcome != OutcomeAuthFailure {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if strings.Contains(result.ErrorSnippet, "supersecretvalue") {
		t.Errorf("snippet leaked cookie value: %q", result.ErrorSnippet)
	}
}

func TestFingerprintHeaders(t *testing.T) {
	h := fingerprintHeaders("agent/1", "https://grok.example")
	for _, key := range []string{"accept", "accept-language", "content-type", "origin", "referer", "sec-ch-ua", "sec-fetch-mode", "user-agent", "x-xai-request-id"} {
		if h.Get(key) == "" {
			t.Errorf("header %q not set", key)
		}
	}
	if h.Get("user-agent") != "agent/1" {
		t.Errorf("user-agent = %q", h.Get("user-agent"))
	}
	if h.Get("referer") != "https://grok.example/" {
		t.Errorf("referer = %q", h.Get("referer"))
	}
}

func TestPickUserAgentFallback(t *testing.T) {
	if ua := pickUserAgent(nil); ua == "" {
		t.Error("empty fallback user-agent")
	}
	if ua := pickUserAgent([]string{"only"}); ua != "only" {
		t.Errorf("ua = %q", ua)
	}
}
