package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/go-chi/chi/v5"
)

// ReputationHandler exposes reputation scores to operators
type ReputationHandler struct {
	reputation *services.ReputationService
}

// NewReputationHandler creates a new ReputationHandler
func NewReputationHandler(reputation *services.ReputationService) *ReputationHandler {
	return &ReputationHandler{reputation: reputation}
}

// AdjustReputationRequest represents a manual reputation adjustment
type AdjustReputationRequest struct {
	Delta  float64 `json:"delta" validate:"required,gte=-100,lte=100"`
	Reason string  `json:"reason" validate:"required,min=1,max=255"`
}

// List GET /admin/reputation
func (h *ReputationHandler) List(w http.ResponseWriter, r *http.Request) {
	scores := h.reputation.Snapshot()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"scores": scores,
		"total":  len(scores),
	})
}

// Get GET /admin/reputation/{ip}
func (h *ReputationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		httpx.WriteBadRequest(w, "ip is required")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ip":    ip,
		"score": h.reputation.Get(ip),
	})
}

// Adjust POST /admin/reputation/{ip}
func (h *ReputationHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		httpx.WriteBadRequest(w, "ip is required")
		return
	}

	var req AdjustReputationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	actor := auth.ActorFromContext(r.Context())
	newScore := h.reputation.Adjust(r.Context(), ip,
		req.Delta, fmt.Sprintf("manual adjustment by %s: %s", actor, req.Reason))

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ip":    ip,
		"score": newScore,
	})
}
