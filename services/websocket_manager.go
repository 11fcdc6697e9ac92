package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"social-dashboard/actions"
)

// WebSocket errors
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionBufferFull = errors.New("connection buffer full")
)

// Event types pushed to dashboard clients
const (
	EventConnected = "connected"
	EventToast     = "toast"
	EventState     = "state"
)

// WebSocketManager fans dashboard events out to the browser tabs of a
// session
type WebSocketManager struct {
	// session id -> connection id -> connection
	connections map[string]map[string]*WebSocketConnection
	mu          sync.RWMutex
	broadcast   chan BroadcastMessage
}

// WebSocketConnection represents a single WebSocket connection
type WebSocketConnection struct {
	Conn      *websocket.Conn
	SessionID string
	ConnID    string
	Send      chan []byte
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	SessionID string
	Type      string
	Data      any
}

// MessagePayload represents the structure of WebSocket messages
type MessagePayload struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Toast is the data of a toast event
type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewWebSocketManager creates a manager. Run must be started for
// broadcasts to be delivered.
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]map[string]*WebSocketConnection),
		broadcast:   make(chan BroadcastMessage, 256),
	}
}

// Run delivers broadcasts until ctx is done
func (m *WebSocketManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-m.broadcast:
			m.deliver(message)
		}
	}
}

// RegisterConnection registers a new WebSocket connection
func (m *WebSocketManager) RegisterConnection(conn *WebSocketConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connections[conn.SessionID] == nil {
		m.connections[conn.SessionID] = make(map[string]*WebSocketConnection)
	}
	m.connections[conn.SessionID][conn.ConnID] = conn

	slog.Info("WebSocket connection registered",
		"session", conn.SessionID,
		"conn", conn.ConnID,
		"sessionConnections", len(m.connections[conn.SessionID]))
}

// UnregisterConnection removes a WebSocket connection
func (m *WebSocketManager) UnregisterConnection(sessionID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionConns, exists := m.connections[sessionID]
	if !exists {
		return
	}
	conn, exists := sessionConns[connID]
	if !exists {
		return
	}

	close(conn.Send)
	delete(sessionConns, connID)
	if len(sessionConns) == 0 {
		delete(m.connections, sessionID)
	}

	slog.Info("WebSocket connection unregistered",
		"session", sessionID,
		"conn", connID,
		"remainingConnections", len(sessionConns))
}

// DisconnectSession closes every connection of a session
func (m *WebSocketManager) DisconnectSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.connections[sessionID] {
		close(conn.Send)
	}
	delete(m.connections, sessionID)
}

// BroadcastToSession queues a message for every connection of a session.
// Messages are dropped when the queue is full; clients resync from the
// next state event.
func (m *WebSocketManager) BroadcastToSession(message BroadcastMessage) {
	select {
	case m.broadcast <- message:
	default:
		slog.Warn("WebSocket broadcast queue full", "session", message.SessionID, "type", message.Type)
	}
}

func (m *WebSocketManager) deliver(message BroadcastMessage) {
	data, err := encodePayload(message.Type, message.Data)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections[message.SessionID] {
		select {
		case conn.Send <- data:
		default:
			slog.Warn("WebSocket connection buffer full",
				"session", message.SessionID,
				"conn", conn.ConnID)
		}
	}
}

// SendToConnection sends a message to a specific connection
func (m *WebSocketManager) SendToConnection(sessionID, connID string, msgType string, data any) error {
	payload, err := encodePayload(msgType, data)
	if err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[sessionID][connID]
	if !exists {
		return ErrConnectionNotFound
	}
	select {
	case conn.Send <- payload:
		return nil
	default:
		return ErrConnectionBufferFull
	}
}

// GetConnectionCount returns the number of active connections of a session
func (m *WebSocketManager) GetConnectionCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections[sessionID])
}

func encodePayload(msgType string, data any) ([]byte, error) {
	return json.Marshal(MessagePayload{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// SessionPublisher publishes one dashboard's events
type SessionPublisher struct {
	manager   *WebSocketManager
	sessionID string
}

// Publisher returns the event publisher of a session
func (m *WebSocketManager) Publisher(sessionID string) *SessionPublisher {
	return &SessionPublisher{manager: m, sessionID: sessionID}
}

// Notify sends an action outcome as a toast
func (p *SessionPublisher) Notify(o actions.Outcome) {
	level := "success"
	switch o.Status {
	case actions.StatusWarning:
		level = "warning"
	case actions.StatusInvalid, actions.StatusFailed:
		level = "error"
	}
	p.manager.BroadcastToSession(BroadcastMessage{
		SessionID: p.sessionID,
		Type:      EventToast,
		Data:      Toast{Level: level, Message: o.Message},
	})
}

// Changed tells clients to fetch a new snapshot
func (p *SessionPublisher) Changed(version uint64) {
	p.manager.BroadcastToSession(BroadcastMessage{
		SessionID: p.sessionID,
		Type:      EventState,
		Data:      map[string]uint64{"version": version},
	})
}
