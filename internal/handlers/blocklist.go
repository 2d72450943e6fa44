package handlers

import (
	"net/http"

	"github.com/Shatzii/sentinel/internal/auth"
	"github.com/Shatzii/sentinel/internal/services"
	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/go-chi/chi/v5"
)

// BlocklistHandler exposes the IP blocklist to operators
type BlocklistHandler struct {
	blocklist *services.BlocklistService
}

// NewBlocklistHandler creates a new BlocklistHandler
func NewBlocklistHandler(blocklist *services.BlocklistService) *BlocklistHandler {
	return &BlocklistHandler{blocklist: blocklist}
}

// List GET /admin/blocklist
func (h *BlocklistHandler) List(w http.ResponseWriter, r *http.Request) {
	blocked := h.blocklist.Blocked()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"blocked": blocked,
		"total":   len(blocked),
	})
}

// Unblock DELETE /admin/blocklist/{ip}
func (h *BlocklistHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		httpx.WriteBadRequest(w, "ip is required")
		return
	}

	actor := auth.ActorFromContext(r.Context())
	if !h.blocklist.Unblock(r.Context(), ip, actor) {
		httpx.WriteNotFound(w, "ip is not blocked")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ip": ip, "unblocked": true})
}
