package services

import (
	"context"
	"time"

	"github.com/naduri/naduri-backend/internal/llm"
)

// Health states reported by /health
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// CollaboratorOps are the breaker keys reported in health checks
var CollaboratorOps = []string{"transcribe", "evaluate", "reply", "synthesize", "report"}

// Pinger is satisfied by *sqlx.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthStatus is the result of a health check
type HealthStatus struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	Database      string            `json:"database"`
	Collaborators map[string]string `json:"collaborators,omitempty"`
	ResponseTime  int64             `json:"response_time_ms"`
	LastError     string            `json:"last_error,omitempty"`
}

// HealthChecker reports database reachability and collaborator breaker states.
// The database being down makes the service unhealthy; an open breaker only degrades it.
type HealthChecker struct {
	db      Pinger
	breaker *llm.CircuitBreaker
	timeout time.Duration
}

// NewHealthChecker creates a new health checker. Either dependency may be nil.
func NewHealthChecker(db Pinger, breaker *llm.CircuitBreaker) *HealthChecker {
	return &HealthChecker{db: db, breaker: breaker, timeout: 2 * time.Second}
}

// Check runs the health probes
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Status:   HealthHealthy,
		Service:  "naduri-backend",
		Database: "ok",
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status.Status = HealthUnhealthy
			status.Database = "unreachable"
			status.LastError = err.Error()
		}
	}

	if h.breaker != nil {
		status.Collaborators = make(map[string]string, len(CollaboratorOps))
		for _, op := range CollaboratorOps {
			state := h.breaker.GetState(op)
			status.Collaborators[op] = state.String()
			if state != llm.StateClosed && status.Status == HealthHealthy {
				status.Status = HealthDegraded
			}
		}
	}

	status.ResponseTime = time.Since(start).Milliseconds()
	return status
}
