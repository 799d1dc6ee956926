package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/api/handlers"
	"github.com/naduri/naduri-backend/internal/api/middleware"
	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/services"
)

// Options are the pieces of the HTTP surface that come from outside the services
type Options struct {
	Server    config.ServerConfig
	RateLimit config.RateLimitConfig
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
	Logger  *logrus.Logger
}

// NewApp builds the fiber app with middleware and all routes
func NewApp(svc *services.Services, opts Options) *fiber.App {
	bodyLimit := opts.Server.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 25
	}

	app := fiber.New(fiber.Config{
		AppName:               "Naduri Backend",
		ErrorHandler:          handlers.ErrorHandler(opts.Logger),
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	origins := opts.Server.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	if opts.RateLimit.Max > 0 {
		app.Use(middleware.APIRateLimit(opts.RateLimit.Max, opts.RateLimit.Window))
	}

	SetupRoutes(app, svc, opts)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, opts Options) {
	// Session lifecycle
	app.Post("/session/start", handlers.StartSession(svc))
	app.Post("/session/end", handlers.EndSession(svc))
	app.Post("/session/:id/finalize", handlers.FinalizeSession(svc))
	app.Get("/session/:id/report", handlers.GetReport(svc))

	// Turns
	turnLimit := func(c *fiber.Ctx) error { return c.Next() }
	if opts.RateLimit.Max > 0 {
		turnLimit = middleware.TurnRateLimit(opts.RateLimit.Max, opts.RateLimit.Window)
	}
	app.Post("/turn/user", turnLimit, handlers.UserTurn(svc))
	app.Post("/turn/assistant", turnLimit, handlers.AssistantTurn(svc))

	// Exports
	app.Get("/session/:id/export/txt", handlers.ExportText(svc))
	app.Get("/session/:id/export/json", handlers.ExportJSON(svc))

	// Stored audio
	app.Get("/storage/audio/:filename", handlers.ServeAudio(svc))

	// Health check
	app.Get("/health", handlers.Health(svc))

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	// Optional bundled frontend
	if opts.Server.StaticDir != "" {
		app.Static("/", opts.Server.StaticDir)
	}
}
