package handlers

import (
	"github.com/gofiber/fiber/v2"

	"social-dashboard/middleware"
)

// TextRequest carries the text of a reply or message. Content rules are
// applied by the action so the user sees the same messages everywhere.
type TextRequest struct {
	Text string `json:"text"`
}

// ReplyToMention posts a reply under a mention
func ReplyToMention(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().ReplyToMention(ctx, ref(c, "id"), req.Text)
	return outcomeJSON(c, o)
}

// SendMessage sends a direct message in a conversation
func SendMessage(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().SendMessage(ctx, ref(c, "id"), req.Text)
	return outcomeJSON(c, o)
}
