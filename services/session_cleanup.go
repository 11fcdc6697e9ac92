package services

import (
	"context"
	"log/slog"
	"time"

	"social-dashboard/dashboard"
)

// StartSessionCleanup starts a background goroutine that periodically drops
// dashboards of idle sessions
func StartSessionCleanup(ctx context.Context, registry *dashboard.Registry, manager *WebSocketManager, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session cleanup stopped")
				return
			case <-ticker.C:
				removed := CleanupIdleSessions(registry, manager, idle)
				if len(removed) > 0 {
					slog.Info("Cleaned up idle sessions", "count", len(removed), "remaining", registry.Len())
				}
			}
		}
	}()

	slog.Info("Session cleanup started", "interval", interval, "idle", idle)
}

// CleanupIdleSessions removes idle dashboards and closes their sockets
func CleanupIdleSessions(registry *dashboard.Registry, manager *WebSocketManager, idle time.Duration) []string {
	removed := registry.Sweep(idle)
	if manager != nil {
		for _, id := range removed {
			manager.DisconnectSession(id)
		}
	}
	return removed
}
