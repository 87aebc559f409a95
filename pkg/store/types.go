package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status is the stored lifecycle state of a session.
type Status string

const (
	// StatusHealthy marks a session eligible for selection.
	StatusHealthy Status = "healthy"

	// StatusQuarantined marks a session pulled from rotation after
	// repeated failures. Only explicit operator action re-promotes it.
	StatusQuarantined Status = "quarantined"

	// StatusExpired marks a session retired by age, usage, or its own
	// expiry timestamp.
	StatusExpired Status = "expired"

	// StatusRevoked is terminal. A revoked session never transitions
	// anywhere else and is never selected.
	StatusRevoked Status = "revoked"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusQuarantined, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status transition s -> next is
// permitted. Allowed directions:
//
//	healthy -> quarantined
//	healthy|quarantined -> expired
//	any (except revoked) -> revoked
//	quarantined -> healthy (explicit operator re-promotion only; callers
//	  are responsible for restricting this to the admin surface)
//
// revoked is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusRevoked {
		return false
	}
	if s == next {
		return false
	}
	switch next {
	case StatusRevoked:
		return true
	case StatusQuarantined:
		return s == StatusHealthy
	case StatusExpired:
		return s == StatusHealthy || s == StatusQuarantined
	case StatusHealthy:
		return s == StatusQuarantined
	}
	return false
}

// Session is one pool member: a cookie-backed credential for the upstream.
type Session struct {
	// ID is an opaque unique identifier (UUID).
	ID string

	// CookieText is the opaque credential string. Never logged in clear.
	CookieText string

	// CookieHash is the stable SHA-256 hex of CookieText, used for
	// deduplication. Unique per provider.
	CookieHash string

	// Provider tags the upstream service this session authenticates to.
	Provider string

	CreatedAt         time.Time
	LastUsedAt        *time.Time
	ExpiresAt         *time.Time
	LastHealthCheckAt *time.Time

	// UsageCount, SuccessCount and FailureCount are monotonic.
	// success + failure <= usage always holds.
	UsageCount   int64
	SuccessCount int64
	FailureCount int64

	// Status is the stored status; the pool's classifier may derive a
	// different effective status at read time.
	Status Status

	// Metadata holds free-form annotations (source, notes).
	Metadata map[string]string
}

// FailureRate returns failure_count / usage_count, or 0 for unused sessions.
func (s *Session) FailureRate() float64 {
	if s.UsageCount == 0 {
		return 0
	}
	return float64(s.FailureCount) / float64(s.UsageCount)
}

// HashCookie computes the stable dedup hash for cookie material.
func HashCookie(cookieText string) string {
	sum := sha256.Sum256([]byte(cookieText))
	return hex.EncodeToString(sum[:])
}

// SessionFilter narrows ListSessions results. Zero values mean "any".
type SessionFilter struct {
	Provider string
	Status   Status
}

// Generation is the terminal, durably recorded outcome of one inbound
// request. At most one row exists per inbound request regardless of how many
// attempts it took.
type Generation struct {
	ID        string
	RequestID string

	// SessionID is the session that produced the terminal result, empty
	// when every attempt failed before touching a session.
	SessionID string

	Provider string
	Model    string

	// Request snapshot.
	Prompt            string
	Temperature       *float64
	TopP              *float64
	MaxOutputTokens   *int
	ToolChoice        string
	ParallelToolCalls bool

	// Response snapshot.
	ResponseText     string
	ResponseRaw      string
	FinishReason     string
	ReasoningContent string
	ResponseID       string
	PreviousResponseID string
	IncompleteDetails  string
	Annotations        string

	// Observability.
	Status       int
	LatencyMs    int64
	ErrorMessage string

	// Token accounting; zero when unknown.
	PromptTokens             int
	ResponseTokens           int
	ReasoningTokens          int
	AudioTokens              int
	ImageTokens              int
	CachedTokens             int
	AcceptedPredictionTokens int
	RejectedPredictionTokens int
	NumSourcesUsed           int

	CreatedAt time.Time
}

// TokenUsage is an append-only accounting row per successful generation.
// Costs are integer micro-USD to avoid floating point error.
type TokenUsage struct {
	ID           string
	GenerationID string
	UserID       string
	SessionID    string
	Provider     string
	Model        string

	PromptTextTokens   int
	PromptAudioTokens  int
	PromptImageTokens  int
	PromptCachedTokens int
	PromptTotalTokens  int

	CompletionReasoningTokens          int
	CompletionAudioTokens              int
	CompletionTextTokens               int
	CompletionAcceptedPredictionTokens int
	CompletionRejectedPredictionTokens int
	CompletionTotalTokens              int

	TotalTokens int

	PromptCostMicroUSD     int64
	CompletionCostMicroUSD int64
	TotalCostMicroUSD      int64

	CreatedAt time.Time
}
