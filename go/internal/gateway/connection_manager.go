package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/cashier/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections to the cashier and TV screens
type ConnectionManager struct {
	// Connection pools organized by screen
	screens map[Screen]map[*Connection]bool
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage

	displayTexts *DisplayTextCache
	state        StateProvider
}

// Connection represents a WebSocket connection to a screen
type Connection struct {
	ID      string
	Screen  Screen
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a message queued for delivery. An empty Screen
// targets every connection.
type BroadcastMessage struct {
	Screen Screen
	Event  *ScreenEvent
}

// StateProvider builds the snapshot a screen receives when it connects.
type StateProvider interface {
	Snapshot(ctx context.Context, screen Screen) (any, error)
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024, // display_text reports carry several selectors
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Screens are served from the terminal itself
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		screens: make(map[Screen]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:       config,
		broadcastCh:  make(chan BroadcastMessage, 1000),
		displayTexts: NewDisplayTextCache(),
	}
}

// SetStateProvider installs the provider used for connect-time snapshots.
func (cm *ConnectionManager) SetStateProvider(p StateProvider) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.state = p
}

// DisplayTexts returns the cache fed by display_text reports.
func (cm *ConnectionManager) DisplayTexts() *DisplayTextCache {
	return cm.displayTexts
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, screen Screen) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:          uuid.New().String(),
		Screen:      screen,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: now,
		LastPing:    now,
	}

	cm.sendSnapshot(r.Context(), connection)
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("screen", string(screen)).
		Msg("WebSocket connection established")

	return nil
}

// sendSnapshot queues the initial state before the connection is visible
// to broadcasts, so the snapshot is always the first frame.
func (cm *ConnectionManager) sendSnapshot(ctx context.Context, conn *Connection) {
	cm.mu.RLock()
	provider := cm.state
	cm.mu.RUnlock()
	if provider == nil {
		return
	}

	state, err := provider.Snapshot(ctx, conn.Screen)
	if err != nil {
		log.Warn().Err(err).Str("screen", string(conn.Screen)).Msg("failed to build screen snapshot")
		return
	}
	event, err := NewScreenEvent(TypeSnapshot, state)
	if err != nil {
		log.Error().Err(err).Msg("failed to wrap screen snapshot")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal screen snapshot")
		return
	}
	conn.Send <- data
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.screens[conn.Screen] == nil {
		cm.screens[conn.Screen] = make(map[*Connection]bool)
	}
	cm.screens[conn.Screen][conn] = true
	metrics.ScreenConnections.Inc()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("screen", string(conn.Screen)).
		Int("total_connections", len(cm.screens[conn.Screen])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.screens[conn.Screen]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	metrics.ScreenConnections.Dec()

	if len(connections) == 0 {
		delete(cm.screens, conn.Screen)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("screen", string(conn.Screen)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.screens {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// BroadcastToScreen queues an event for every connection of one screen kind.
func (cm *ConnectionManager) BroadcastToScreen(screen Screen, event *ScreenEvent) {
	cm.enqueue(BroadcastMessage{Screen: screen, Event: event})
}

// BroadcastAll queues an event for every connected screen.
func (cm *ConnectionManager) BroadcastAll(event *ScreenEvent) {
	cm.enqueue(BroadcastMessage{Event: event})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("screen", string(message.Screen)).
			Str("event_type", string(message.Event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the read lock so unregisterConnection cannot close
	// a Send channel mid-broadcast. Slow connections are dropped afterwards.
	var (
		delivered int
		slow      []*Connection
	)
	cm.mu.RLock()
	for screen, connections := range cm.screens {
		if message.Screen != "" && screen != message.Screen {
			continue
		}
		for conn := range connections {
			select {
			case conn.Send <- eventData:
				delivered++
			default:
				slow = append(slow, conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("screen", string(conn.Screen)).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("screen", string(message.Screen)).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// ConnectionStats is the payload of the stats endpoint.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	Screens          map[Screen]int `json:"screens"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{Screens: make(map[Screen]int, len(cm.screens))}
	for screen, connections := range cm.screens {
		stats.Screens[screen] = len(connections)
		stats.TotalConnections += len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the screen. Only
// the cashier screen reports display text.
func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case clientDisplayText:
		if c.Screen != ScreenTerminal {
			return
		}
		if err := c.Manager.displayTexts.Update(msg.Data); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignoring display text report")
		}
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("screen", string(c.Screen)).
			Str("type", msg.Type).
			Msg("received client message")
	}
}
