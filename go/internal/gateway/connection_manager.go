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
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/quizrush/go/internal/events"
)

// MessageHandler receives what the connection manager reads off the wire.
type MessageHandler interface {
	HandleMessage(c *Connection, raw []byte)
	HandleDisconnect(c *Connection, roomCode string)
}

// ConnectionManager manages WebSocket connections for quiz rooms
type ConnectionManager struct {
	// Every live connection, and the pools of those attached to a room
	connections     map[*Connection]struct{}
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan events.Envelope
}

// Connection represents a WebSocket connection to a player
type Connection struct {
	ID       string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	// Guarded by Manager.mu
	roomCode string

	limiter *rate.Limiter

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool

	// Inbound messages allowed per second, and the burst above that rate
	MessageRate  float64
	MessageBurst int
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		MessageRate:  10,
		MessageBurst: 20,
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections:     make(map[*Connection]struct{}),
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan events.Envelope, 1000),
	}
}

// SetHandler installs the handler for inbound messages. It must be called
// before the first connection is upgraded.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start processes queued envelopes until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.drain()
			cm.closeAll()
			return
		case env := <-cm.broadcastCh:
			cm.handleEnvelope(env)
		}
	}
}

// Publish queues a room event for delivery. It never blocks: when the queue is
// full the event is dropped.
func (cm *ConnectionManager) Publish(env events.Envelope) {
	select {
	case cm.broadcastCh <- env:
	default:
		log.Warn().
			Str("room_code", env.RoomCode).
			Str("event_type", string(env.Event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. A non-empty
// roomCode attaches the connection to that room straight away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, playerID, roomCode string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		roomCode:    roomCode,
		ConnectedAt: time.Now(),
	}
	if cm.config.MessageRate > 0 {
		connection.limiter = rate.NewLimiter(rate.Limit(cm.config.MessageRate), cm.config.MessageBurst)
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID).
		Str("room_code", roomCode).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = struct{}{}
	if conn.roomCode != "" {
		cm.addToRoom(conn, conn.roomCode)
	}
}

// unregisterConnection removes a connection from the manager. It reports
// whether the connection was still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) (string, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return "", false
	}
	delete(cm.connections, conn)
	roomCode := conn.roomCode
	cm.removeFromRoom(conn)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Str("room_code", roomCode).
		Msg("connection unregistered")
	return roomCode, true
}

// addToRoom and removeFromRoom expect cm.mu to be held for writing.
func (cm *ConnectionManager) addToRoom(conn *Connection, roomCode string) {
	if cm.roomConnections[roomCode] == nil {
		cm.roomConnections[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomCode][conn] = true
	conn.roomCode = roomCode
}

func (cm *ConnectionManager) removeFromRoom(conn *Connection) {
	if conn.roomCode == "" {
		return
	}
	if pool, exists := cm.roomConnections[conn.roomCode]; exists {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.roomConnections, conn.roomCode)
		}
	}
	conn.roomCode = ""
}

// Attach moves a connection into a room's pool, leaving any previous room.
func (cm *ConnectionManager) Attach(conn *Connection, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	cm.removeFromRoom(conn)
	cm.addToRoom(conn, roomCode)
}

// Detach removes a connection from its room's pool without closing it.
func (cm *ConnectionManager) Detach(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeFromRoom(conn)
}

// RoomOf returns the room the connection is attached to, or "".
func (cm *ConnectionManager) RoomOf(conn *Connection) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.roomCode
}

// PlayerConnected reports whether any live connection for playerID is
// attached to roomCode.
func (cm *ConnectionManager) PlayerConnected(roomCode, playerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for conn := range cm.roomConnections[roomCode] {
		if conn.PlayerID == playerID {
			return true
		}
	}
	return false
}

// SendTo delivers an event to one connection only.
func (cm *ConnectionManager) SendTo(conn *Connection, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	cm.deliver([]*Connection{conn}, data, false)
}

// handleEnvelope delivers one room event to its targets. A room:closed event
// also detaches every connection of the room.
func (cm *ConnectionManager) handleEnvelope(env events.Envelope) {
	cm.mu.RLock()
	var targets []*Connection
	for conn := range cm.roomConnections[env.RoomCode] {
		if !env.Broadcast() && conn.PlayerID != env.PlayerID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	// Detach before delivering so nothing a client sends after seeing
	// room:closed is routed to the dead room.
	if env.Event.Type == events.TypeRoomClosed {
		cm.detachRoom(env.RoomCode)
	}

	if len(targets) > 0 {
		data, err := json.Marshal(env.Event)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal event for broadcast")
			return
		}
		cm.deliver(targets, data, true)
	}

	log.Debug().
		Str("event_type", string(env.Event.Type)).
		Str("room_code", env.RoomCode).
		Str("player_id", env.PlayerID).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// deliver queues data on each connection. Sends happen under the read lock so
// a concurrent unregister cannot close a channel mid-send. Connections whose
// buffer is full are dropped when dropSlow is set.
func (cm *ConnectionManager) deliver(targets []*Connection, data []byte, dropSlow bool) {
	var slow []*Connection

	cm.mu.RLock()
	for _, conn := range targets {
		if _, live := cm.connections[conn]; !live {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	if !dropSlow {
		return
	}
	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("player_id", conn.PlayerID).
			Msg("connection send buffer full, closing connection")
		conn.Conn.Close()
	}
}

func (cm *ConnectionManager) detachRoom(roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for conn := range cm.roomConnections[roomCode] {
		conn.roomCode = ""
	}
	delete(cm.roomConnections, roomCode)
}

// drain delivers whatever is still queued.
func (cm *ConnectionManager) drain() {
	for {
		select {
		case env := <-cm.broadcastCh:
			cm.handleEnvelope(env)
		default:
			return
		}
	}
}

// closeAll closes every Send channel; each write pump flushes what is queued
// and then sends a close frame.
func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats is a point-in-time view of the connection pools.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[string]int, len(cm.roomConnections))
	for code, pool := range cm.roomConnections {
		counts[code] = len(pool)
	}

	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.roomConnections),
		RoomConnections:  counts,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
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

// readPump reads client frames until the connection drops, then reports the
// disconnect to the handler.
func (c *Connection) readPump() {
	defer func() {
		c.Conn.Close()
		if roomCode, ok := c.Manager.unregisterConnection(c); ok && c.Manager.handler != nil {
			c.Manager.handler.HandleDisconnect(c, roomCode)
		}
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.handleClientMessage(message)
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		log.Warn().
			Str("connection_id", c.ID).
			Str("player_id", c.PlayerID).
			Msg("inbound rate limit exceeded")
		c.Manager.SendTo(c, events.New(c.Manager.RoomOf(c), events.TypeError,
			events.ErrorPayload{Message: ErrRateLimited.Error()}, time.Now()))
		return
	}
	if c.Manager.handler == nil {
		log.Debug().Str("connection_id", c.ID).RawJSON("message", message).Msg("no handler for client message")
		return
	}
	c.Manager.handler.HandleMessage(c, message)
}
