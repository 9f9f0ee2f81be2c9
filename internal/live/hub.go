// Package live streams a group's round trips over a WebSocket: thinking,
// typewriter reveal, score count-up and the final state.
package live

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// closer is the part of *websocket.Conn the hub needs.
type closer interface {
	Close(code websocket.StatusCode, reason string) error
}

// Hub tracks the live connection of each group. A newer connection replaces
// the older one.
type Hub struct {
	mu     sync.RWMutex
	active map[string]closer
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]closer)}
}

// Register adds conn for group, closing any previous connection.
func (h *Hub) Register(group string, conn closer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.active[group]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	h.active[group] = conn
	slog.Info("Live session registered", "group", group)
}

// Unregister removes conn if it is still the group's active connection.
func (h *Hub) Unregister(group string, conn closer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.active[group]; ok && current == conn {
		delete(h.active, group)
		slog.Info("Live session unregistered", "group", group)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// CloseAll terminates every live connection.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for group, conn := range h.active {
		_ = conn.Close(websocket.StatusGoingAway, reason)
		slog.Info("Live session closed", "group", group)
	}
	clear(h.active)
}
