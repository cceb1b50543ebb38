package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/casegate/pkg/cmd"
	"github.com/dukex/casegate/pkg/log"
	"github.com/dukex/casegate/pkg/orchestrator"
)

const (
	defaultSweepSchedule = "@every 1m"
	defaultStallAfter    = 10 * time.Minute
)

func main() {
	command := &cli.Command{
		Name:                  "casegate-worker",
		EnableShellCompletion: true,
		Usage:                 "Recover stalled financial joins and log case lifecycle events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Case store URL (file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "agents-config",
				Usage:   "Path to the stage agents YAML file; template agents are used when empty",
				Sources: cli.EnvVars("AGENTS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule of the stalled join sweep",
				Value:   defaultSweepSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "stall-after",
				Usage:   "Age after which a join still in progress is reverted; must exceed --generation-timeout",
				Value:   defaultStallAfter,
				Sources: cli.EnvVars("STALL_AFTER"),
			},
			&cli.DurationFlag{
				Name:    "generation-timeout",
				Usage:   "Generation timeout configured on the API",
				Value:   orchestrator.DefaultGenerationTimeout,
				Sources: cli.EnvVars("GENERATION_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("casegate-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing casegate worker")

			if err := checkStallThreshold(command.Duration("stall-after"), command.Duration("generation-timeout")); err != nil {
				return err
			}

			tracer, shutdown, err := cmd.NewTracer(ctx, command.Bool("otel-enabled"), "casegate-worker")
			if err != nil {
				return err
			}

			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			registry, err := cmd.NewRegistry(logger, command.String("agents-config"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "casegate-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			orch := orchestrator.New(persistence.CaseRepository(), registry, logger,
				orchestrator.WithEventPublisher(eventBus),
				orchestrator.WithTracer(tracer),
				orchestrator.WithGenerationTimeout(command.Duration("generation-timeout")),
			)

			sweeper, err := NewSweeper(orch, command.String("sweep-schedule"), command.Duration("stall-after"), logger)
			if err != nil {
				return err
			}

			return NewWorkerManager(workerID, eventBus, sweeper, logger).Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
