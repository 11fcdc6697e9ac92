package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"social-dashboard/config"
	"social-dashboard/dashboard"
	"social-dashboard/handlers"
	"social-dashboard/platforms"
	"social-dashboard/retry"
	"social-dashboard/services"
	"social-dashboard/store"
)

const version = "0.1.0"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	app := &cli.App{
		Name:    "social-dashboard",
		Usage:   "Facebook and Instagram social inbox dashboard",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"DASHBOARD_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the dashboard server",
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "Validate the configuration and wait for the backend",
				Action: check,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// setup loads and validates configuration and installs the logger
func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})
	slog.SetDefault(slog.New(logHandler))
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func check(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	client, err := platforms.NewClient(cfg.BackendURL, platforms.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return err
	}
	if err := client.WaitReady(c.Context, cfg.BackendHealthPath, retry.ReadinessConfig(cfg.ReadyMaxRetries)); err != nil {
		return err
	}

	fmt.Println("configuration ok, backend reachable at", cfg.BackendURL)
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential storage
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.CredentialSecret == "" {
		slog.Warn("No credential secret configured, tokens are stored unsealed")
	}
	kv, closeStore, err := services.InitCredentialStore(initCtx, cfg.MongoURI, cfg.DatabaseName, cfg.CredentialSecret)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			slog.Error("Failed to close credential store", "error", err)
		}
	}()

	// Backend clients share one transport and one limiter. Each session
	// gets its own cookie jar so backend logins never leak across browsers.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	limiter := newLimiter(cfg.RequestsPerSecond)
	clientOptions := []platforms.Option{
		platforms.WithTransport(transport),
		platforms.WithTimeout(cfg.RequestTimeout),
		platforms.WithRateLimit(limiter),
	}

	probe, err := platforms.NewClient(cfg.BackendURL, clientOptions...)
	if err != nil {
		return err
	}
	if err := probe.WaitReady(ctx, cfg.BackendHealthPath, retry.ReadinessConfig(cfg.ReadyMaxRetries)); err != nil {
		// the dashboard still serves cached state and reports errors per call
		slog.Warn("Backend is not reachable yet", "url", cfg.BackendURL, "error", err)
	}

	wsManager := services.NewWebSocketManager()
	go wsManager.Run(ctx)

	registry := dashboard.NewRegistry(func(sessionID string) (*dashboard.Dashboard, error) {
		client, err := platforms.NewClient(cfg.BackendURL, clientOptions...)
		if err != nil {
			return nil, err
		}
		return dashboard.New(sessionID, dashboard.Options{
			Credentials: store.NewCredentials(kv, sessionID),
			Adapters:    platforms.NewSet(client),
			Auth:        platforms.NewAuthClient(client),
			Publisher:   wsManager.Publisher(sessionID),
		}), nil
	})

	services.StartSessionCleanup(ctx, registry, wsManager, cfg.SessionSweepInterval, cfg.SessionIdleTTL)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 128 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Origins(), ", "),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	handlers.RegisterRoutes(app, handlers.RouteConfig{
		Registry:     registry,
		WebSockets:   wsManager,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionIdleTTL,
	})

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Server starting", "port", cfg.Port, "backend", cfg.BackendURL)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
