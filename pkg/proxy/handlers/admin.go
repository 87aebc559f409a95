package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"corvus-hq/rookery/pkg/proxy"
	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/session"
	"corvus-hq/rookery/pkg/store"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

// AdminHandler exposes session pool management. Cookie material never
// appears in responses; sessions are rendered as sessionView.
type AdminHandler struct {
	pool   *session.Pool
	logger *logging.Logger
}

// NewAdminHandler builds the admin session handler.
func NewAdminHandler(pool *session.Pool, logger *logging.Logger) *AdminHandler {
	return &AdminHandler{pool: pool, logger: logger}
}

// sessionView is the admin-facing session shape. No cookie text, no hash.
type sessionView struct {
	ID           string            `json:"id"`
	Provider     string            `json:"provider"`
	Status       store.Status      `json:"status"`
	UsageCount   int64             `json:"usage_count"`
	SuccessCount int64             `json:"success_count"`
	FailureCount int64             `json:"failure_count"`
	FailureRate  float64           `json:"failure_rate"`
	CreatedAt    time.Time         `json:"created_at"`
	LastUsedAt   *time.Time        `json:"last_used_at,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func toView(s *store.Session) sessionView {
	return sessionView{
		ID:           s.ID,
		Provider:     s.Provider,
		Status:       s.Status,
		UsageCount:   s.UsageCount,
		SuccessCount: s.SuccessCount,
		FailureCount: s.FailureCount,
		FailureRate:  s.FailureRate(),
		CreatedAt:    s.CreatedAt,
		LastUsedAt:   s.LastUsedAt,
		ExpiresAt:    s.ExpiresAt,
		Metadata:     s.Metadata,
	}
}

// List serves GET /admin/sessions.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.pool.Sessions()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, toView(s))
	}
	_ = proxy.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": views,
		"count":    len(views),
	})
}

// createSessionRequest is the POST /admin/sessions body.
type createSessionRequest struct {
	Cookies  string            `json:"cookies"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Create serves POST /admin/sessions.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, types.ErrorTypeValidation, "invalid JSON body")
		return
	}
	if body.Cookies == "" {
		h.writeError(w, r, types.ErrorTypeValidation, "cookies is required")
		return
	}

	created, err := h.pool.Add(r.Context(), body.Cookies, body.Metadata)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			h.writeError(w, r, types.ErrorTypeConflict, "session with identical cookies already exists")
			return
		}
		h.storeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "session created", "session_id", created.ID)
	_ = proxy.WriteJSON(w, http.StatusCreated, toView(created))
}

// Get serves GET /admin/sessions/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.pool.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, types.ErrorTypeNotFound, "session not found")
		return
	}
	_ = proxy.WriteJSON(w, http.StatusOK, toView(s))
}

// Quarantine serves POST /admin/sessions/{id}/quarantine.
func (h *AdminHandler) Quarantine(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "quarantine", h.pool.Quarantine)
}

// Revoke serves POST /admin/sessions/{id}/revoke.
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "revoke", h.pool.Revoke)
}

// Activate serves POST /admin/sessions/{id}/activate. Only quarantined
// sessions can be re-promoted.
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "activate", h.pool.Activate)
}

// Stats serves GET /admin/sessions/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSON(w, http.StatusOK, h.pool.Stats())
}

func (h *AdminHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, string) error) {
	id := r.PathValue("id")
	if err := fn(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.writeError(w, r, types.ErrorTypeNotFound, "session not found")
		case errors.Is(err, store.ErrBadTransition):
			h.writeError(w, r, types.ErrorTypeConflict, "session status does not permit "+action)
		default:
			h.storeError(w, r, err)
		}
		return
	}

	h.logger.InfoContext(r.Context(), "session "+action+"d", "session_id", id)
	s, err := h.pool.Get(id)
	if err != nil {
		h.writeError(w, r, types.ErrorTypeNotFound, "session not found")
		return
	}
	_ = proxy.WriteJSON(w, http.StatusOK, toView(s))
}

func (h *AdminHandler) writeError(w http.ResponseWriter, r *http.Request, errorType, message string) {
	_ = proxy.WriteError(w, types.NewErrorResponse(errorType, message, logging.GetRequestID(r.Context())))
}

func (h *AdminHandler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "admin store operation failed", "error", err)
	if errors.Is(err, store.ErrUnavailable) {
		_ = proxy.WriteJSON(w, http.StatusServiceUnavailable,
			types.NewErrorResponse(types.ErrorTypePersistenceUnavailable,
				"persistence temporarily unavailable", logging.GetRequestID(r.Context())))
		return
	}
	h.writeError(w, r, types.ErrorTypeInternal, "an internal error occurred")
}
