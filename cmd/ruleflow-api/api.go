// Package main provides the RuleFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/ruleflowhq/ruleflow/pkg/bulk"
	"github.com/ruleflowhq/ruleflow/pkg/engine"
	"github.com/ruleflowhq/ruleflow/pkg/eventbus"
	"github.com/ruleflowhq/ruleflow/pkg/history"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
	"github.com/ruleflowhq/ruleflow/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	records     bulk.RecordStore
	validate    *validator.Validate
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	records bulk.RecordStore,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		records:     records,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithEventBus attaches the audit event bus; executed and rolled back bulk
// transactions are published on it.
func (a *API) WithEventBus(eventBus eventbus.EventBus) *API {
	a.eventBus = eventBus

	return a
}

func (a *API) WithTracer(tracer trace.Tracer) *API {
	a.tracer = tracer

	return a
}

func (a *API) App() *fiber.App {
	eng := engine.NewEngine(a.logger, a.persistence, a.registry, history.NewStore(a.persistence))
	executor := bulk.NewExecutor(a.logger, a.records, a.persistence)

	if a.eventBus != nil {
		eng = eng.WithPublisher(a.eventBus)
		executor = executor.WithPublisher(a.eventBus)
	}

	if a.tracer != nil {
		eng = eng.WithTracer(a.tracer)
		executor = executor.WithTracer(a.tracer)
	}

	handlers := web.NewAPIHandlers(eng, executor, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("RuleFlow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
