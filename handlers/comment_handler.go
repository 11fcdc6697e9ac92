package handlers

import (
	"github.com/gofiber/fiber/v2"

	"social-dashboard/middleware"
)

type HideCommentRequest struct {
	Hidden *bool `json:"hidden" validate:"required"`
}

// ReplyToComment answers a comment under a post
func ReplyToComment(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().ReplyToComment(ctx, ref(c, "postID"), c.Params("commentID"), req.Text)
	return outcomeJSON(c, o)
}

// HideComment hides or unhides a comment
func HideComment(c *fiber.Ctx) error {
	var req HideCommentRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().HideComment(ctx, ref(c, "postID"), c.Params("commentID"), *req.Hidden)
	return outcomeJSON(c, o)
}

// DeleteComment removes a comment and its replies
func DeleteComment(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().DeleteComment(ctx, ref(c, "postID"), c.Params("commentID"))
	return outcomeJSON(c, o)
}
