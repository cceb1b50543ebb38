// Package main provides the casegate API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/casegate/pkg/eventbus"
	"github.com/dukex/casegate/pkg/orchestrator"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/registry"
	"github.com/dukex/casegate/pkg/services"
	"github.com/dukex/casegate/pkg/web"
)

type API struct {
	logger            *slog.Logger
	persistence       persistence.Persistence
	registry          *registry.Registry
	eventBus          eventbus.EventBus
	tracer            trace.Tracer
	generationTimeout time.Duration
	validate          *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	generationTimeout time.Duration,
) *API {
	return &API{
		logger:            logger,
		persistence:       persistence,
		registry:          registry,
		eventBus:          eventBus,
		tracer:            tracer,
		generationTimeout: generationTimeout,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	opts := []orchestrator.Option{
		orchestrator.WithGenerationTimeout(a.generationTimeout),
		orchestrator.WithEventPublisher(a.eventBus),
	}

	if a.tracer != nil {
		opts = append(opts, orchestrator.WithTracer(a.tracer))
	}

	orch := orchestrator.New(a.persistence.CaseRepository(), a.registry, a.logger, opts...)

	handlers := web.NewAPIHandlers(services.NewCase(a.persistence, a.eventBus), orch, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Casegate API")
	})

	handlers.Routes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
