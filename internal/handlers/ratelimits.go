package handlers

import (
	"net/http"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/pkg/httpx"
)

// RateLimitHandler exposes per-identity rate-limit state to operators
type RateLimitHandler struct {
	limiter *services.RateLimitService
}

// NewRateLimitHandler creates a new RateLimitHandler
func NewRateLimitHandler(limiter *services.RateLimitService) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter}
}

// Status GET /admin/ratelimits?kind=ip&value=203.0.113.9
// For combined identities, value is "ip|user".
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	kind := models.IdentityKind(r.URL.Query().Get("kind"))
	value := r.URL.Query().Get("value")

	switch kind {
	case models.IdentityKindIP, models.IdentityKindUser, models.IdentityKindCombined:
	default:
		httpx.WriteBadRequest(w, "kind must be one of: ip, user, combined")
		return
	}
	if value == "" {
		httpx.WriteBadRequest(w, "value is required")
		return
	}

	identity := models.IdentityKey{Kind: kind, Value: value}
	counter, ok := h.limiter.Status(identity)
	if !ok {
		httpx.WriteNotFound(w, "no rate-limit state for identity")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"identity": identity.String(),
		"counter":  counter,
	})
}
