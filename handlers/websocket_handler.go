package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"social-dashboard/dashboard"
	"social-dashboard/middleware"
	"social-dashboard/services"
)

// WebSocketMessage represents an incoming WebSocket message
type WebSocketMessage struct {
	Type string `json:"type"`
}

// WebSocketUpgrade upgrades HTTP connection to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWebSocket streams toast and state events of the caller's session.
// The session middleware must run before the upgrade.
func HandleWebSocket(manager *services.WebSocketManager, registry *dashboard.Registry) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		sessionID, ok := c.Locals(middleware.LocalSessionID).(string)
		if !ok || sessionID == "" {
			slog.Error("WebSocket connection without session")
			c.Close()
			return
		}

		conn := &services.WebSocketConnection{
			Conn:      c,
			SessionID: sessionID,
			ConnID:    uuid.NewString(),
			Send:      make(chan []byte, 256),
		}

		manager.RegisterConnection(conn)
		defer manager.UnregisterConnection(sessionID, conn.ConnID)

		slog.Info("WebSocket connection established", "session", sessionID, "conn", conn.ConnID)

		if err := manager.SendToConnection(sessionID, conn.ConnID, services.EventConnected, fiber.Map{
			"message": "WebSocket connection established",
		}); err != nil {
			slog.Warn("Failed to send welcome message", "error", err)
		}

		go handleWebSocketSend(conn)
		handleWebSocketReceive(conn, manager, registry)
	}
}

// handleWebSocketSend handles sending messages to the WebSocket client
func handleWebSocketSend(conn *services.WebSocketConnection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("Failed to write WebSocket message", "error", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocketReceive handles receiving messages from the WebSocket client
func handleWebSocketReceive(conn *services.WebSocketConnection, manager *services.WebSocketManager, registry *dashboard.Registry) {
	defer conn.Conn.Close()

	conn.Conn.SetReadLimit(64 * 1024)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			return
		}

		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to parse WebSocket message", "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			// an open socket keeps the session alive
			registry.Get(conn.SessionID)
			if err := manager.SendToConnection(conn.SessionID, conn.ConnID, "pong", nil); err != nil {
				slog.Warn("Failed to send pong", "session", conn.SessionID, "error", err)
			}

		case "snapshot":
			d, ok := registry.Lookup(conn.SessionID)
			if !ok {
				slog.Warn("Snapshot requested for expired session", "session", conn.SessionID)
				continue
			}
			if err := manager.SendToConnection(conn.SessionID, conn.ConnID, "snapshot", d.Snapshot()); err != nil {
				slog.Warn("Failed to send snapshot", "session", conn.SessionID, "error", err)
			}

		default:
			slog.Warn("Unknown WebSocket message type",
				"type", msg.Type,
				"session", conn.SessionID)
		}
	}
}
