package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"social-dashboard/dashboard"
	"social-dashboard/middleware"
	"social-dashboard/services"
)

// RouteConfig holds what the routes need besides the request
type RouteConfig struct {
	Registry     *dashboard.Registry
	WebSockets   *services.WebSocketManager
	CookieSecure bool
	SessionTTL   time.Duration
}

// RegisterRoutes mounts the health check, the auth proxy and the dashboard API
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", HealthCheck(cfg.Registry))

	session := middleware.Session(middleware.SessionConfig{
		Registry: cfg.Registry,
		Secure:   cfg.CookieSecure,
		MaxAge:   cfg.SessionTTL,
	})

	auth := app.Group("/auth", session)
	auth.Post("/login", Login)
	auth.Post("/signup", Signup)
	auth.Post("/logout", Logout)
	auth.Get("/me", GetAccount)

	api := app.Group("/api/dashboard", session)
	api.Get("/state", GetState)
	api.Put("/tab", SetTab)
	api.Put("/platform", SelectPlatform)
	api.Post("/refresh", Refresh)
	api.Get("/overview", GetOverview)
	api.Put("/drafts", SaveDraft)

	api.Put("/selection/mention", SelectMention)
	api.Put("/selection/dm", SelectConversation)
	api.Put("/selection/post", SelectPost)

	api.Get("/account", GetAccount)
	api.Put("/theme", SetTheme)
	api.Put("/connections/:platform", middleware.ValidatePlatform, Connect)
	api.Delete("/connections/:target", Disconnect)

	api.Get("/ws", WebSocketUpgrade, websocket.New(HandleWebSocket(cfg.WebSockets, cfg.Registry)))

	// keep middleware off this group, it would also match the static routes
	platform := api.Group("/:platform")
	validPlatform := middleware.ValidatePlatform
	platform.Post("/mentions/:id/replies", validPlatform, ReplyToMention)
	platform.Post("/conversations/:id/messages", validPlatform, SendMessage)
	platform.Post("/posts", validPlatform, CreatePost)
	platform.Put("/posts/:id", validPlatform, UpdatePost)
	platform.Delete("/posts/:id", validPlatform, DeletePost)
	platform.Post("/posts/:postID/comments/:commentID/replies", validPlatform, ReplyToComment)
	platform.Put("/posts/:postID/comments/:commentID/hidden", validPlatform, HideComment)
	platform.Delete("/posts/:postID/comments/:commentID", validPlatform, DeleteComment)
}
