package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"social-dashboard/dashboard"
)

// HealthCheck reports liveness and the number of live dashboard sessions
func HealthCheck(registry *dashboard.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"sessions": registry.Len(),
			"time":     time.Now().UTC(),
		})
	}
}
