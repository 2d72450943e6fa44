package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// StreamHub fans alerts out to connected websocket subscribers. It is the
// live-feed half of the alert dispatcher: Broadcast never blocks the
// caller, and a subscriber that cannot keep up is dropped.
type StreamHub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	broadcast chan any
	logger    *slog.Logger
}

// NewStreamHub creates a new StreamHub
func NewStreamHub(logger *slog.Logger) *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			// The endpoint sits behind admin key auth, not cookies, so
			// cross-origin requests carry no ambient credentials
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 100),
		logger:    logger,
	}
}

// Broadcast implements services.AlertBroadcaster
func (h *StreamHub) Broadcast(event any) {
	select {
	case h.broadcast <- event:
	default:
		// Feed is best effort; drop rather than stall an admission decision
		h.logger.Debug("alert feed buffer full, dropping event")
	}
}

// Run delivers broadcast events to subscribers until ctx is cancelled
func (h *StreamHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.broadcast:
			h.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range conns {
				if err := conn.WriteJSON(event); err != nil {
					h.logger.Debug("alert feed write failed, dropping subscriber",
						slog.Any("error", err))
					conn.Close()
					h.removeClient(conn)
				}
			}
		}
	}
}

// Subscribe GET /admin/stream upgrades the connection and registers it for
// the live alert feed
func (h *StreamHub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	h.clientsMu.Unlock()

	h.logger.Info("alert feed subscriber connected",
		slog.String("remote_addr", r.RemoteAddr))

	// Consume control frames until the client goes away
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.removeClient(conn)
			conn.Close()
			return
		}
	}
}

// Subscribers returns the current subscriber count
func (h *StreamHub) Subscribers() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *StreamHub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	delete(h.clients, conn)
}

func (h *StreamHub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
