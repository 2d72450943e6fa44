package handlers

import (
	"context"
	"net/http"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AnomalyHandler exposes recorded anomalies and baselines to operators
type AnomalyHandler struct {
	detector *services.AnomalyService
}

// NewAnomalyHandler creates a new AnomalyHandler
func NewAnomalyHandler(detector *services.AnomalyService) *AnomalyHandler {
	return &AnomalyHandler{detector: detector}
}

// List GET /admin/anomalies
// ?include_reviewed=true also returns acknowledged and false-positive records
func (h *AnomalyHandler) List(w http.ResponseWriter, r *http.Request) {
	includeReviewed := r.URL.Query().Get("include_reviewed") == "true"

	anomalies := h.detector.Anomalies(includeReviewed)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"total":     len(anomalies),
	})
}

// ListBaselines GET /admin/baselines
func (h *AnomalyHandler) ListBaselines(w http.ResponseWriter, r *http.Request) {
	baselines := h.detector.Baselines()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"baselines": baselines,
		"total":     len(baselines),
	})
}

// Acknowledge POST /admin/anomalies/{id}/ack
func (h *AnomalyHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.detector.Acknowledge)
}

// MarkFalsePositive POST /admin/anomalies/{id}/false-positive
func (h *AnomalyHandler) MarkFalsePositive(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.detector.MarkFalsePositive)
}

func (h *AnomalyHandler) review(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, actor string) bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteBadRequest(w, "invalid anomaly id")
		return
	}

	actor := auth.ActorFromContext(r.Context())
	if !apply(r.Context(), id, actor) {
		httpx.WriteNotFound(w, "anomaly not found")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "updated": true})
}
