package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"social-dashboard/models"
)

const localPlatform = "platform"

// ValidatePlatform ensures the :platform route parameter names a known
// platform
func ValidatePlatform(c *fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		slog.Warn("Unknown platform requested", "platform", c.Params("platform"), "path", c.Path())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Locals(localPlatform, platform)
	return c.Next()
}

// GetPlatform returns the platform set by ValidatePlatform
func GetPlatform(c *fiber.Ctx) models.Platform {
	p, _ := c.Locals(localPlatform).(models.Platform)
	return p
}
