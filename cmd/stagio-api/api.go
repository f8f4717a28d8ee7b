// Package main provides the Stagio approval API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/stagio/stagio/pkg/engine"
	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/resolver"
	"github.com/stagio/stagio/pkg/services"
	"github.com/stagio/stagio/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	notifier    notification.Notifier
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	notifier notification.Notifier,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		notifier:    notifier,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	approverResolver := resolver.NewResolver(a.persistence.DirectoryRepository(), a.logger)
	workflowEngine := engine.NewEngine(a.persistence, approverResolver, a.notifier, a.logger)
	decisions := services.NewDecision(a.persistence, approverResolver, workflowEngine, a.notifier, a.logger)

	checkers := map[string]web.HealthChecker{}
	if checker, ok := a.notifier.(web.HealthChecker); ok {
		checkers["notifications"] = checker
	}

	handlers := web.NewAPIHandlers(workflowEngine, decisions, a.persistence, a.validate, checkers)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stagio API")
	})

	v1 := app.Group("/v1")

	i := v1.Group("/instances")
	i.Post("/", handlers.CreateInstance)
	i.Get("/:id", handlers.GetInstance)
	i.Get("/:id/history", handlers.GetInstanceHistory)

	ap := v1.Group("/approvals")
	ap.Post("/:id/approve", handlers.ApproveRequest)
	ap.Post("/:id/reject", handlers.RejectRequest)
	ap.Post("/:id/comments", handlers.CommentRequest)

	v1.Get("/principals/:id/approvals", handlers.GetPendingApprovals)

	w := v1.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	a.logger.InfoContext(ctx, "Starting Stagio API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
