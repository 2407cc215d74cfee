package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/eventbus"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/roles"
	"github.com/hrflow/hrflow/pkg/services"
	"github.com/hrflow/hrflow/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger    *slog.Logger
	engine    *engine.Engine
	validate  *validator.Validate
	workflows *services.Workflows
	instances *services.Instances
	pending   *services.PendingActions
	decisions *services.Decisions
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	rules *condition.Evaluator,
	wfEngine *engine.Engine,
	resolver roles.Resolver,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:    logger,
		engine:    wfEngine,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		workflows: services.NewWorkflows(logger, persistence, rules),
		instances: services.NewInstances(logger, persistence, wfEngine, resolver, publisher),
		pending:   services.NewPendingActions(persistence, resolver),
		decisions: services.NewDecisions(logger, persistence, wfEngine, resolver, publisher, tracer),
	}
}

// Instances exposes the instance service for event consumers running beside the API.
func (a *API) Instances() *services.Instances {
	return a.instances
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflows, a.instances, a.pending, a.decisions, a.engine, a.validate)

	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("hrflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Listening", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
