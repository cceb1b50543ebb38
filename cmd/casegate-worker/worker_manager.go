package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/casegate/pkg/eventbus"
	"github.com/dukex/casegate/pkg/events"
)

// WorkerManager consumes lifecycle events and runs the join sweeper.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	sweeper  *Sweeper
}

func NewWorkerManager(id string, eventBus eventbus.EventBus, sweeper *Sweeper, logger *slog.Logger) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "casegate-worker", "worker_id", id),
		eventBus: eventBus,
		sweeper:  sweeper,
	}
}

// Start registers the event handlers, subscribes and starts the sweeper.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.CaseCreatedEvent:           w.handleCaseCreated,
		events.CaseStatusChangedEvent:     w.handleStatusChanged,
		events.StageGenerationFailedEvent: w.handleGenerationFailed,
		events.JoinCompletedEvent:         w.handleJoinCompleted,
		events.JoinFailedEvent:            w.handleJoinFailed,
	}

	for eventType, handler := range handlers {
		if err := w.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if err := w.sweeper.Start(ctx); err != nil {
		return err
	}

	// A sweep at startup picks up joins interrupted by a previous crash.
	w.sweeper.Sweep(ctx)

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// Run starts the worker and blocks until a termination signal or ctx is done.
func (w *WorkerManager) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")
	w.sweeper.Stop()

	return nil
}

func (w *WorkerManager) handleCaseCreated(ctx context.Context, event any) error {
	created, ok := event.(*events.CaseCreated)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for CaseCreated")

		return nil
	}

	w.logger.InfoContext(ctx, "Case created", "case_id", created.CaseID, "owner", created.Owner, "title", created.Title)

	return nil
}

func (w *WorkerManager) handleStatusChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.CaseStatusChanged)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for CaseStatusChanged")

		return nil
	}

	w.logger.InfoContext(ctx, "Case status changed",
		"case_id", changed.CaseID,
		"stage", changed.Stage,
		"from_status", changed.FromStatus,
		"status", changed.ToStatus,
		"actor", changed.Actor,
	)

	return nil
}

func (w *WorkerManager) handleGenerationFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.StageGenerationFailed)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for StageGenerationFailed")

		return nil
	}

	w.logger.WarnContext(ctx, "Stage generation failed", "case_id", failed.CaseID, "stage", failed.Stage, "reason", failed.Reason)

	return nil
}

func (w *WorkerManager) handleJoinCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.JoinCompleted)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for JoinCompleted")

		return nil
	}

	w.logger.InfoContext(ctx, "Financial join completed",
		"case_id", completed.CaseID,
		"primary", completed.Primary,
		"currency", completed.Currency,
		"roi_percent", completed.ROIPercent,
	)

	return nil
}

func (w *WorkerManager) handleJoinFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.JoinFailed)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for JoinFailed")

		return nil
	}

	w.logger.WarnContext(ctx, "Financial join failed", "case_id", failed.CaseID, "reverted_to", failed.RevertedTo, "reason", failed.Reason)

	return nil
}
