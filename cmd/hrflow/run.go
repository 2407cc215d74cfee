package main

import (
	"context"
	"fmt"

	"github.com/hrflow/hrflow/pkg/cmd"
	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/log"
	"github.com/hrflow/hrflow/pkg/notify"
	"github.com/hrflow/hrflow/pkg/roles"
	cli "github.com/urfave/cli/v3"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (postgres://, sqlite://, redis://, file:// or a directory)",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "roles-file",
				Usage:   "JSON file mapping tenant and user to roles",
				Sources: cli.EnvVars("ROLES_FILE"),
			},
			&cli.BoolFlag{
				Name:    "consume-events",
				Usage:   "Start workflows from HR events received on the event bus",
				Sources: cli.EnvVars("CONSUME_EVENTS"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing hrflow API")

			tracer, shutdown, err := cmd.NewTracer(ctx, logger, command.Bool("otel"), "hrflow")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger, command.Bool("otel"))
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			resolver, err := roles.LoadFile(command.String("roles-file"))
			if err != nil {
				return err
			}

			rules := condition.NewEvaluator()
			wfEngine := engine.New(logger, rules,
				engine.WithTracer(tracer),
				engine.WithNotifier(notify.Multi{
					notify.NewLogNotifier(logger),
					notify.NewBusNotifier(eventBus),
				}),
			)

			api := NewAPI(logger, persistence, rules, wfEngine, resolver, eventBus, tracer)

			if command.Bool("consume-events") {
				err := eventBus.Handle(events.HREventReceivedEvent, api.Instances().HREventHandler())
				if err != nil {
					return fmt.Errorf("failed to register HR event handler: %w", err)
				}

				if err := eventBus.Subscribe(ctx); err != nil {
					return fmt.Errorf("failed to subscribe to HR events: %w", err)
				}

				logger.InfoContext(ctx, "Consuming HR events", "event_type", events.HREventReceivedEvent)
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}
}
