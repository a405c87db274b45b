package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests from screens
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stateHandler      *StateHandler
}

func NewWebSocketHandler(cm *ConnectionManager, state *StateHandler) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stateHandler:      state,
	}
}

// HandleScreenConnection handles /ws?screen=terminal|tv
func (h *WebSocketHandler) HandleScreenConnection(w http.ResponseWriter, r *http.Request) {
	screen, err := ParseScreen(r.URL.Query().Get("screen"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The upgrader has already written an HTTP error when this fails.
	if err := h.connectionManager.UpgradeConnection(w, r, screen); err != nil {
		log.Error().
			Err(err).
			Str("screen", string(screen)).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleScreenConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
	if h.stateHandler != nil {
		mux.HandleFunc("/ws/state", h.stateHandler.HandleGetState)
	}
}
