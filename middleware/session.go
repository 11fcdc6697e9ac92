package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"social-dashboard/dashboard"
)

const (
	// SessionCookieName is the browser cookie that identifies a dashboard
	SessionCookieName = "dashboard_session"

	// LocalSessionID is the Locals key holding the session id
	LocalSessionID = "session_id"
	localDashboard = "dashboard"
)

// SessionConfig configures the session middleware
type SessionConfig struct {
	Registry *dashboard.Registry
	Secure   bool
	MaxAge   time.Duration
}

// Session attaches the browser's dashboard to the request, issuing a new
// session cookie when the request has none or an unusable one
func Session(cfg SessionConfig) fiber.Handler {
	sameSite := "Lax"
	if cfg.Secure {
		sameSite = "None"
	}

	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.NewString()
			slog.Debug("Issuing new dashboard session", "session", sessionID)
		}

		d, err := cfg.Registry.Get(sessionID)
		if err != nil {
			slog.Error("Failed to create dashboard", "session", sessionID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to start dashboard session",
			})
		}

		// refresh the expiry on every request
		cookie := &fiber.Cookie{
			Name:     SessionCookieName,
			Value:    sessionID,
			HTTPOnly: true,
			Secure:   cfg.Secure,
			SameSite: sameSite,
			Path:     "/",
		}
		if cfg.MaxAge > 0 {
			cookie.Expires = time.Now().Add(cfg.MaxAge)
		}
		c.Cookie(cookie)

		c.Locals(LocalSessionID, sessionID)
		c.Locals(localDashboard, d)
		return c.Next()
	}
}

// SessionID returns the session id set by Session
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalSessionID).(string)
	return id
}

// GetDashboard returns the dashboard set by Session
func GetDashboard(c *fiber.Ctx) *dashboard.Dashboard {
	d, _ := c.Locals(localDashboard).(*dashboard.Dashboard)
	return d
}
