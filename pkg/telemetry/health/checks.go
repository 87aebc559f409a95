package health

import (
	"context"
	"fmt"
	"time"
)

// pingTimeout bounds the database connectivity probe.
const pingTimeout = 2 * time.Second

// Pinger is the database connectivity probe; the store gateway satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats reports pool composition; the session pool's Stats satisfies it
// through a small adapter closure.
type PoolStats func() (total, healthy int)

// DatabaseCheck verifies store connectivity. A failed ping is unhealthy:
// without persistence the admin surface and telemetry trail are gone.
func DatabaseCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) Check {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return Check{Name: "database", Status: StatusUnhealthy, Details: err.Error()}
		}
		return Check{Name: "database", Status: StatusHealthy}
	}
}

// SessionPoolCheck reports pool capacity. An empty pool, or one with no
// healthy members, is degraded rather than unhealthy: the process is fine
// and new cookie material fixes it without a restart.
func SessionPoolCheck(stats PoolStats) CheckFunc {
	return func(ctx context.Context) Check {
		total, healthy := stats()
		details := fmt.Sprintf("%d/%d healthy", healthy, total)
		if healthy == 0 {
			return Check{Name: "session_pool", Status: StatusDegraded, Details: details}
		}
		return Check{Name: "session_pool", Status: StatusHealthy, Details: details}
	}
}

// CircuitCheck reports the breaker state. An open circuit is degraded.
func CircuitCheck(state func() string) CheckFunc {
	return func(ctx context.Context) Check {
		s := state()
		if s == "open" {
			return Check{Name: "circuit", Status: StatusDegraded, Details: "circuit open"}
		}
		return Check{Name: "circuit", Status: StatusHealthy, Details: s}
	}
}
