package routes

import (
	"time"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// AdminHandlers bundles everything the management API serves
type AdminHandlers struct {
	Anomalies  *handlers.AnomalyHandler
	Blocklist  *handlers.BlocklistHandler
	Reputation *handlers.ReputationHandler
	RateLimits *handlers.RateLimitHandler
	APIKeys    *handlers.APIKeyHandler
	Audit      *handlers.AuditHandler
	Health     *handlers.HealthHandler
	Stream     *handlers.StreamHub
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h AdminHandlers,
	keyManager *auth.APIKeyManager,
	adminRequestsPerMinute int,
) {
	// Health endpoints are public so orchestrators can reach them
	router.Get("/health/live", h.Health.Liveness)
	router.Get("/health/ready", h.Health.Readiness)

	// Management API: coarse per-IP ceiling first, then key auth
	router.Route("/admin", func(r chi.Router) {
		r.Use(httprate.LimitByIP(adminRequestsPerMinute, time.Minute))
		r.Use(auth.RequireAPIKey(keyManager))

		r.Get("/anomalies", h.Anomalies.List)
		r.Post("/anomalies/{id}/ack", h.Anomalies.Acknowledge)
		r.Post("/anomalies/{id}/false-positive", h.Anomalies.MarkFalsePositive)
		r.Get("/baselines", h.Anomalies.ListBaselines)

		r.Get("/blocklist", h.Blocklist.List)
		r.Delete("/blocklist/{ip}", h.Blocklist.Unblock)

		r.Get("/reputation", h.Reputation.List)
		r.Get("/reputation/{ip}", h.Reputation.Get)
		r.Post("/reputation/{ip}", h.Reputation.Adjust)

		r.Get("/ratelimits", h.RateLimits.Status)

		r.Post("/apikeys", h.APIKeys.Create)
		r.Get("/apikeys", h.APIKeys.List)
		r.Delete("/apikeys/{id}", h.APIKeys.Revoke)

		r.Get("/audit", h.Audit.List)

		r.Get("/stream", h.Stream.Subscribe)
	})
}
