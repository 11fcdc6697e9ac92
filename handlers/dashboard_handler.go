package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"social-dashboard/dashboard"
	"social-dashboard/middleware"
	"social-dashboard/models"
	"social-dashboard/platforms"
)

// TabRequest switches the active tab
type TabRequest struct {
	Tab string `json:"tab" validate:"required,oneof=mentions dms posts compose settings"`
}

// PlatformRequest switches the selected platform
type PlatformRequest struct {
	Platform string `json:"platform" validate:"required,oneof=facebook instagram x"`
}

// SelectRequest selects an item of the current platform
type SelectRequest struct {
	ID string `json:"id" validate:"required"`
}

// DraftRequest stores compose box text
type DraftRequest struct {
	Key  string `json:"key" validate:"required"`
	Text string `json:"text"`
}

// GetState returns the session's dashboard snapshot
func GetState(c *fiber.Ctx) error {
	return c.JSON(middleware.GetDashboard(c).Snapshot())
}

// SetTab switches the active tab
func SetTab(c *fiber.Ctx) error {
	var req TabRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}
	tab, _ := dashboard.ParseTab(req.Tab)

	d := middleware.GetDashboard(c)
	d.SetActiveTab(tab)
	return c.JSON(d.Snapshot())
}

// SelectPlatform switches platform and refetches
func SelectPlatform(c *fiber.Ctx) error {
	var req PlatformRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	if err := d.SelectPlatform(ctx, models.Platform(req.Platform)); err != nil && !errors.Is(err, dashboard.ErrStale) {
		slog.Warn("Failed to select platform", "session", d.ID(), "platform", req.Platform, "error", err)
		return dashboardError(c, err)
	}
	return c.JSON(d.Snapshot())
}

// Refresh refetches the selected platform. Partial failures are part of
// the snapshot, not an error.
func Refresh(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	if err := d.Refresh(ctx); err != nil && !errors.Is(err, dashboard.ErrStale) {
		slog.Error("Failed to refresh dashboard", "session", d.ID(), "error", err)
		return dashboardError(c, err)
	}
	return c.JSON(d.Snapshot())
}

// GetOverview returns every connected platform merged into one view
func GetOverview(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	result, err := d.Overview(ctx)
	if err != nil {
		slog.Error("Failed to build overview", "session", d.ID(), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to build overview")
	}

	errs := map[string]string{}
	for capability, ferr := range result.Failures {
		errs[string(capability)] = platforms.ErrorMessage(ferr, "Could not load "+string(capability))
	}
	return c.JSON(fiber.Map{
		"mentions":      result.Mentions,
		"posts":         result.Posts,
		"conversations": result.Conversations,
		"errors":        errs,
	})
}

// SelectMention shows a mention
func SelectMention(c *fiber.Ctx) error {
	var req SelectRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	d := middleware.GetDashboard(c)
	if err := d.SelectMention(req.ID); err != nil {
		return dashboardError(c, err)
	}
	return c.JSON(d.Snapshot())
}

// SelectConversation shows a conversation and loads its history
func SelectConversation(c *fiber.Ctx) error {
	var req SelectRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	if err := d.SelectConversation(ctx, req.ID); err != nil && !errors.Is(err, dashboard.ErrStale) {
		return dashboardError(c, err)
	}
	return c.JSON(d.Snapshot())
}

// SelectPost shows a post and loads its comments
func SelectPost(c *fiber.Ctx) error {
	var req SelectRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	if err := d.SelectPost(ctx, req.ID); err != nil && !errors.Is(err, dashboard.ErrStale) {
		return dashboardError(c, err)
	}
	return c.JSON(d.Snapshot())
}

// SaveDraft stores compose box text
func SaveDraft(c *fiber.Ctx) error {
	var req DraftRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	middleware.GetDashboard(c).SetDraft(req.Key, req.Text)
	return c.SendStatus(fiber.StatusNoContent)
}
