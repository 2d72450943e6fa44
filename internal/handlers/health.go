package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Shatzii/sentinel/pkg/httpx"
)

// HealthChecker is any optional dependency that can report its own health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger is satisfied by the Redis shared window
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and dependency health
type HealthHandler struct {
	db    HealthChecker // nil when audit persistence is not configured
	redis Pinger        // nil when the shared window is not configured
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db HealthChecker, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Liveness GET /health/live always reports ok while the process serves
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness GET /health/ready checks optional dependencies. The in-memory
// engine itself has no external requirements, so unconfigured dependencies
// are reported as skipped rather than failing.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := map[string]string{}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			components["database"] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "ok"
		}
	} else {
		components["database"] = "skipped"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			components["redis"] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			components["redis"] = "ok"
		}
	} else {
		components["redis"] = "skipped"
	}

	body := map[string]any{"components": components}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "degraded"
	}
	httpx.WriteJSON(w, status, body)
}
