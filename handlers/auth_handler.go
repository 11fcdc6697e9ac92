package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"social-dashboard/middleware"
	"social-dashboard/models"
	"social-dashboard/platforms"
	"social-dashboard/store"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ConnectRequest carries the credentials of one platform. Completeness is
// checked by the dashboard so the messages match the other validators.
type ConnectRequest struct {
	AccessToken     string `json:"accessToken"`
	AccountID       string `json:"accountId"`
	PageAccessToken string `json:"pageAccessToken"`
	User            string `json:"user"`
}

type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

// authError answers a failed login or signup. Only a 4xx from the backend
// is a rejection of the user's input.
func authError(c *fiber.Ctx, err error, rejected int, fallback string) error {
	var apiErr *platforms.APIError
	switch {
	case errors.Is(err, platforms.ErrNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, "Sign in is not available")
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return errorJSON(c, rejected, platforms.ErrorMessage(err, fallback))
	}
	return dashboardError(c, err)
}

// Login signs the session in with the backend
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	user, err := d.Login(ctx, req.Email, req.Password)
	if err != nil {
		slog.Info("Login failed", "session", d.ID(), "email", req.Email, "error", err)
		return authError(c, err, fiber.StatusUnauthorized, "Login failed")
	}

	slog.Info("User logged in", "session", d.ID(), "user_id", user.ID)
	return c.JSON(fiber.Map{"user": user})
}

// Signup creates a backend account
func Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	user, err := d.Signup(ctx, platforms.SignupRequest{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		slog.Info("Signup failed", "session", d.ID(), "email", req.Email, "error", err)
		return authError(c, err, fiber.StatusBadRequest, "Signup failed")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// Logout ends the backend session and forgets stored credentials
func Logout(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	if err := d.Logout(ctx); err != nil {
		slog.Error("Failed to logout", "session", d.ID(), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to logout")
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// GetAccount returns the signed-in user and masked connections
func GetAccount(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	account, err := middleware.GetDashboard(c).Account(ctx)
	if err != nil {
		slog.Error("Failed to read account", "session", middleware.SessionID(c), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to read account")
	}
	return c.JSON(account)
}

// Connect stores the credentials of the :platform route parameter
func Connect(c *fiber.Ctx) error {
	var req ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	platform := middleware.GetPlatform(c)
	err := d.Connect(ctx, models.Credential{
		Platform:        platform,
		AccessToken:     req.AccessToken,
		AccountID:       req.AccountID,
		PageAccessToken: req.PageAccessToken,
		User:            req.User,
	})
	if err != nil {
		return dashboardError(c, err)
	}

	slog.Info("Platform connected", "session", d.ID(), "platform", platform)
	return GetAccount(c)
}

// Disconnect clears one platform's credentials, or all of them
func Disconnect(c *fiber.Ctx) error {
	target := c.Params("target")
	if err := validate.Var(target, "oneof=facebook instagram "+store.ClearAll); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "target must be one of: facebook instagram all")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	d := middleware.GetDashboard(c)
	if err := d.Disconnect(ctx, target); err != nil {
		slog.Error("Failed to disconnect", "session", d.ID(), "target", target, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to disconnect")
	}
	return GetAccount(c)
}

// SetTheme stores the theme preference
func SetTheme(c *fiber.Ctx) error {
	var req ThemeRequest
	if msg := parseRequest(c, &req); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := middleware.GetDashboard(c).Credentials().SetTheme(ctx, req.Theme); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to save theme")
	}
	return c.JSON(fiber.Map{"theme": req.Theme})
}
