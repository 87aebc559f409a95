package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is a component or aggregate health status.
type Status string

const (
	// StatusHealthy means fully operational.
	StatusHealthy Status = "healthy"

	// StatusDegraded means serving with reduced capacity, such as an empty
	// session pool or an open circuit. Degraded still answers 200 so
	// orchestrators do not restart a process that may recover on its own.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means a hard dependency is down.
	StatusUnhealthy Status = "unhealthy"
)

// Check is one named component verdict.
type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Details string `json:"details,omitempty"`
}

// CheckFunc produces one component verdict.
type CheckFunc func(ctx context.Context) Check

// Report is the aggregate of all component checks.
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// HTTPStatus maps the aggregate to a response code: 503 only when
// unhealthy.
func (r Report) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Checker runs registered component checks and aggregates their verdicts:
// any unhealthy component makes the aggregate unhealthy, otherwise any
// degraded one makes it degraded.
type Checker struct {
	mu     sync.RWMutex
	checks []CheckFunc
}

// NewChecker returns an empty checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Register adds a component check.
func (c *Checker) Register(fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, fn)
}

// Run executes every check and aggregates.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make([]CheckFunc, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	report := Report{Status: StatusHealthy, Timestamp: time.Now().UTC()}
	for _, fn := range checks {
		check := fn(ctx)
		report.Checks = append(report.Checks, check)
		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// Handler serves the aggregate report as JSON.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(report.HTTPStatus())
		json.NewEncoder(w).Encode(report)
	})
}
