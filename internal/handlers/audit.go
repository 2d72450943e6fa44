package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/pkg/httpx"
)

// AuditStore is the read side of the persisted audit trail
type AuditStore interface {
	ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditEvent, error)
	ListByActor(ctx context.Context, actor string, limit, offset int) ([]*models.AuditEvent, error)
	CountByActor(ctx context.Context, actor string) (int64, error)
}

// AuditHandler serves the persisted audit trail. store is nil when audit
// persistence is not configured.
type AuditHandler struct {
	store AuditStore
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(store AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// List GET /admin/audit?actor=&limit=&offset=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "audit_unavailable",
			"audit persistence is not configured")
		return
	}

	limit := queryInt(r, "limit", 50, 1, 100)
	offset := queryInt(r, "offset", 0, 0, 1<<30)
	actor := r.URL.Query().Get("actor")

	if actor != "" {
		events, err := h.store.ListByActor(r.Context(), actor, limit, offset)
		if err != nil {
			httpx.WriteInternalError(w, "failed to list audit events")
			return
		}
		total, err := h.store.CountByActor(r.Context(), actor)
		if err != nil {
			httpx.WriteInternalError(w, "failed to count audit events")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"events": events,
			"total":  total,
			"actor":  actor,
			"limit":  limit,
			"offset": offset,
		})
		return
	}

	events, err := h.store.ListRecent(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteInternalError(w, "failed to list audit events")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}
