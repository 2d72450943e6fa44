package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// APIKeyHandler manages admin API credentials
type APIKeyHandler struct {
	manager *auth.APIKeyManager
	audit   *services.AuditService
}

// NewAPIKeyHandler creates a new APIKeyHandler
func NewAPIKeyHandler(manager *auth.APIKeyManager, audit *services.AuditService) *APIKeyHandler {
	return &APIKeyHandler{manager: manager, audit: audit}
}

// CreateAPIKeyRequest represents the request to issue a new admin key
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// Create POST /admin/apikeys
// The plaintext key appears in this response only; it is never retrievable
// again.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	plainKey, record, err := h.manager.Issue(req.Name)
	if err != nil {
		httpx.WriteInternalError(w, "failed to issue API key")
		return
	}

	h.audit.LogEvent(r.Context(), auth.ActorFromContext(r.Context()),
		"admin API key issued",
		map[string]any{
			"event_type": models.AuditEventAPIKeyOp,
			"key_id":     record.ID.String(),
			"name":       record.Name,
		})

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"key":        plainKey,
		"id":         record.ID,
		"name":       record.Name,
		"key_prefix": record.KeyPrefix,
		"expires_at": record.ExpiresAt,
	})
}

// List GET /admin/apikeys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys := h.manager.List()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"total": len(keys),
	})
}

// Revoke DELETE /admin/apikeys/{id}
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteBadRequest(w, "invalid key id")
		return
	}

	if !h.manager.Revoke(id) {
		httpx.WriteNotFound(w, "API key not found")
		return
	}

	h.audit.LogEvent(r.Context(), auth.ActorFromContext(r.Context()),
		"admin API key revoked",
		map[string]any{"event_type": models.AuditEventAPIKeyOp, "key_id": id.String()})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "revoked": true})
}
