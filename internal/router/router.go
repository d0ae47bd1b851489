// Package router wires middlewares and handlers into a Fiber app.
package router

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/handlers"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/middleware"
	"github.com/soltixdb/statseries/internal/services"
)

// Setup configures all routes and middlewares. m may be nil when metrics are
// disabled.
func Setup(app *fiber.App, logger *logging.Logger, reports *services.ReportService, cfg config.Config, m *metrics.Metrics) *handlers.Handler {
	h := handlers.New(logger, reports)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger, logging.DefaultMiddlewareConfig()))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// Prometheus scrape endpoint (no auth required)
	if m != nil && cfg.Metrics.Enabled {
		app.Use(m.Middleware())
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(m.Handler()))
	}

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled))

	v1.Get("/reports", h.ListReports)
	v1.Post("/reports/run", h.RunReport)
	v1.Get("/reports/:name", h.GetReport)
	v1.Get("/reports/:name/chart", h.GetReportChart)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, reports *services.ReportService, cfg config.Config, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statseries",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, reports, cfg, m)

	return app
}
