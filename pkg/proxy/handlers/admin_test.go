package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/proxy/types"
	"corvus-hq/rookery/pkg/session"
	"corvus-hq/rookery/pkg/store"
)

func testPool(t *testing.T) *session.Pool {
	t.Helper()
	gateway, err := store.NewSQLite(config.StoreConfig{
		Path:           filepath.Join(t.TempDir(), "rookery.db"),
		MinConnections: 1,
		MaxConnections: 2,
		BusyTimeout:    time.Second,
		WALMode:        true,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { gateway.Close() })

	cfg := config.PoolConfig{
		RotationThreshold: 500,
		MaxAgeHours:       24,
		FailureThreshold:  0.2,
		AcquireWait:       time.Second,
	}
	return session.NewPool(gateway, cfg, "grok", testLogger(t), nil)
}

func adminMux(h *AdminHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/sessions", h.List)
	mux.HandleFunc("POST /admin/sessions", h.Create)
	mux.HandleFunc("GET /admin/sessions/stats", h.Stats)
	mux.HandleFunc("GET /admin/sessions/{id}", h.Get)
	mux.HandleFunc("POST /admin/sessions/{id}/quarantine", h.Quarantine)
	mux.HandleFunc("POST /admin/sessions/{id}/revoke", h.Revoke)
	mux.HandleFunc("POST /admin/sessions/{id}/activate", h.Activate)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)
	return rec
}

func errType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error JSON: %v", err)
	}
	return resp.Error.Type
}

func TestAdminSessionLifecycle(t *testing.T) {
	pool := testPool(t)
	mux := adminMux(NewAdminHandler(pool, testLogger(t)))

	// Create.
	rec := doJSON(t, mux, "POST", "/admin/sessions", `{"cookies":"sso=abc; sso-rw=def","metadata":{"source":"ops"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     string       `json:"id"`
		Status store.Status `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.Status != store.StatusHealthy {
		t.Errorf("status = %q", created.Status)
	}
	if strings.Contains(rec.Body.String(), "sso=abc") {
		t.Error("cookie material leaked in create response")
	}

	// Duplicate create conflicts.
	rec = doJSON(t, mux, "POST", "/admin/sessions", `{"cookies":"sso=abc; sso-rw=def"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate code = %d", rec.Code)
	}
	if errType(t, rec) != types.ErrorTypeConflict {
		t.Error("duplicate type mismatch")
	}

	// List.
	rec = doJSON(t, mux, "GET", "/admin/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list code = %d", rec.Code)
	}
	var listing struct {
		Sessions []json.RawMessage `json:"sessions"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if listing.Count != 1 {
		t.Fatalf("count = %d", listing.Count)
	}
	if strings.Contains(rec.Body.String(), "sso=abc") {
		t.Error("cookie material leaked in listing")
	}

	// Quarantine, activate, revoke.
	rec = doJSON(t, mux, "POST", "/admin/sessions/"+created.ID+"/quarantine", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("quarantine code = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, mux, "POST", "/admin/sessions/"+created.ID+"/activate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("activate code = %d", rec.Code)
	}
	rec = doJSON(t, mux, "POST", "/admin/sessions/"+created.ID+"/revoke", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke code = %d", rec.Code)
	}

	// Revoked is terminal; activating it conflicts.
	rec = doJSON(t, mux, "POST", "/admin/sessions/"+created.ID+"/activate", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("activate revoked code = %d", rec.Code)
	}
	if errType(t, rec) != types.ErrorTypeConflict {
		t.Error("bad transition type mismatch")
	}
}

func TestAdminActivateRequiresQuarantine(t *testing.T) {
	pool := testPool(t)
	mux := adminMux(NewAdminHandler(pool, testLogger(t)))

	rec := doJSON(t, mux, "POST", "/admin/sessions", `{"cookies":"sso=xyz"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	// Healthy sessions cannot be "activated".
	rec = doJSON(t, mux, "POST", "/admin/sessions/"+created.ID+"/activate", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestAdminNotFound(t *testing.T) {
	pool := testPool(t)
	mux := adminMux(NewAdminHandler(pool, testLogger(t)))

	for _, path := range []string{
		"/admin/sessions/missing/quarantine",
		"/admin/sessions/missing/revoke",
		"/admin/sessions/missing/activate",
	} {
		rec := doJSON(t, mux, "POST", path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s code = %d, want 404", path, rec.Code)
		}
	}

	rec := doJSON(t, mux, "GET", "/admin/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing code = %d, want 404", rec.Code)
	}
}

func TestAdminCreateValidation(t *testing.T) {
	pool := testPool(t)
	mux := adminMux(NewAdminHandler(pool, testLogger(t)))

	for name, body := range map[string]string{
		"empty cookies": `{"cookies":""}`,
		"invalid JSON":  `{`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, mux, "POST", "/admin/sessions", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, want 400", rec.Code)
			}
			if errType(t, rec) != types.ErrorTypeValidation {
				t.Error("type mismatch")
			}
		})
	}
}

func TestAdminStats(t *testing.T) {
	pool := testPool(t)
	if _, err := pool.Add(context.Background(), "sso=a", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	mux := adminMux(NewAdminHandler(pool, testLogger(t)))

	rec := doJSON(t, mux, "GET", "/admin/sessions/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var stats session.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stats.Total != 1 || stats.Healthy != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
