package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// JoinRecoverer reverts joins that stayed in progress for longer than olderThan.
type JoinRecoverer interface {
	RecoverStalledJoins(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweeper runs stalled join recovery on a cron schedule.
type Sweeper struct {
	recoverer  JoinRecoverer
	schedule   string
	stallAfter time.Duration
	logger     *slog.Logger
	cron       *cron.Cron
}

func NewSweeper(recoverer JoinRecoverer, schedule string, stallAfter time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule '%s': %w", schedule, err)
	}

	if stallAfter <= 0 {
		return nil, fmt.Errorf("stall threshold must be positive, got %s", stallAfter)
	}

	return &Sweeper{
		recoverer:  recoverer,
		schedule:   schedule,
		stallAfter: stallAfter,
		logger:     logger.With("module", "join_sweeper"),
	}, nil
}

// checkStallThreshold requires stallAfter to exceed the generation timeout,
// which bounds how long a healthy join stays in progress.
func checkStallThreshold(stallAfter, generationTimeout time.Duration) error {
	if stallAfter <= generationTimeout {
		return fmt.Errorf("stall threshold %s must exceed the generation timeout %s", stallAfter, generationTimeout)
	}

	return nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule join sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Join sweeper started", "schedule", s.schedule, "stall_after", s.stallAfter)

	return nil
}

// Sweep runs one recovery pass and returns the number of reverted cases.
func (s *Sweeper) Sweep(ctx context.Context) int {
	recovered, err := s.recoverer.RecoverStalledJoins(ctx, s.stallAfter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Join sweep failed", "recovered", recovered, "error", err)

		return recovered
	}

	if recovered > 0 {
		s.logger.WarnContext(ctx, "Reverted stalled joins", "recovered", recovered)
	} else {
		s.logger.DebugContext(ctx, "No stalled joins")
	}

	return recovered
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
}
