package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/channels/gochannel"
	"github.com/dukex/casegate/pkg/eventbus"
	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/mocks"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/orchestrator"
	"github.com/dukex/casegate/pkg/persistence/file"
	"github.com/dukex/casegate/pkg/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recovererFunc func(ctx context.Context, olderThan time.Duration) (int, error)

func (fn recovererFunc) RecoverStalledJoins(ctx context.Context, olderThan time.Duration) (int, error) {
	return fn(ctx, olderThan)
}

func TestNewSweeper_Validation(t *testing.T) {
	noop := recovererFunc(func(context.Context, time.Duration) (int, error) { return 0, nil })

	_, err := NewSweeper(noop, "not a schedule", time.Minute, discardLogger())
	require.ErrorContains(t, err, "invalid sweep schedule")

	_, err = NewSweeper(noop, "@every 1m", 0, discardLogger())
	require.ErrorContains(t, err, "stall threshold must be positive")

	_, err = NewSweeper(noop, "*/5 * * * *", time.Minute, discardLogger())
	require.NoError(t, err)
}

func TestCheckStallThreshold(t *testing.T) {
	require.NoError(t, checkStallThreshold(10*time.Minute, 2*time.Minute))

	err := checkStallThreshold(time.Minute, 2*time.Minute)
	require.ErrorContains(t, err, "must exceed the generation timeout 2m0s")

	require.Error(t, checkStallThreshold(time.Minute, time.Minute))
}

func TestSweeper_Sweep(t *testing.T) {
	var gotThreshold time.Duration

	sweeper, err := NewSweeper(recovererFunc(func(_ context.Context, olderThan time.Duration) (int, error) {
		gotThreshold = olderThan

		return 2, errors.New("store unavailable")
	}), "@every 1m", 5*time.Minute, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, sweeper.Sweep(context.Background()))
	assert.Equal(t, 5*time.Minute, gotThreshold)
}

func TestSweeper_RecoversStalledJoin(t *testing.T) {
	store := file.NewPersistence(t.TempDir()).CaseRepository()

	stalled := testutil.CreateTestCase(
		testutil.WithStatus(models.StatusJoinInProgress),
		testutil.WithLane(models.StageCost, models.StatusCostApproved),
		testutil.WithLane(models.StageValue, models.StatusValueApproved),
		testutil.WithUpdatedAt(time.Now().Add(-time.Hour)),
	)
	require.NoError(t, store.Create(context.Background(), stalled))

	orch := orchestrator.New(store, nil, discardLogger())

	sweeper, err := NewSweeper(orch, "@every 1m", 10*time.Minute, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, sweeper.Sweep(context.Background()))

	reverted, err := store.GetByID(context.Background(), stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValueApproved, reverted.Status)
}

func TestSweeper_StartStop(t *testing.T) {
	var calls atomic.Int32

	sweeper, err := NewSweeper(recovererFunc(func(context.Context, time.Duration) (int, error) {
		calls.Add(1)

		return 0, nil
	}), "@every 1s", time.Minute, discardLogger())
	require.NoError(t, err)

	require.NoError(t, sweeper.Start(context.Background()))

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	sweeper.Stop()
}

func TestWorkerManager_Start(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", mock.Anything, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(nil)

	var sweeps atomic.Int32

	sweeper, err := NewSweeper(recovererFunc(func(context.Context, time.Duration) (int, error) {
		sweeps.Add(1)

		return 0, nil
	}), "@every 1h", time.Minute, discardLogger())
	require.NoError(t, err)

	worker := NewWorkerManager("worker-test", bus, sweeper, discardLogger())
	require.NoError(t, worker.Start(context.Background()))

	defer sweeper.Stop()

	bus.AssertNumberOfCalls(t, "Handle", 5)
	bus.AssertCalled(t, "Handle", events.JoinFailedEvent, mock.Anything)
	bus.AssertCalled(t, "Subscribe", mock.Anything)
	assert.Equal(t, int32(1), sweeps.Load(), "one sweep runs at startup")
}

func TestWorkerManager_RunStopsWithContext(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	sweeper, err := NewSweeper(recovererFunc(func(context.Context, time.Duration) (int, error) {
		return 0, nil
	}), "@every 1h", time.Minute, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- NewWorkerManager("worker-test", bus, sweeper, discardLogger()).Run(ctx)
	}()

	event := events.JoinFailed{
		BaseEvent:  events.NewBaseEvent(events.JoinFailedEvent, "case-1", models.SystemActor),
		RevertedTo: models.StatusValueApproved,
		Reason:     "narrative agent failed",
	}

	assert.Eventually(t, func() bool {
		return bus.Publish(context.Background(), "case-1", event) == nil
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerManager_HandlersIgnoreUnexpectedPayloads(t *testing.T) {
	worker := NewWorkerManager("worker-test", nil, nil, discardLogger())
	ctx := context.Background()

	assert.NoError(t, worker.handleCaseCreated(ctx, "unexpected"))
	assert.NoError(t, worker.handleStatusChanged(ctx, nil))
	assert.NoError(t, worker.handleGenerationFailed(ctx, 42))
	assert.NoError(t, worker.handleJoinCompleted(ctx, struct{}{}))
	assert.NoError(t, worker.handleJoinFailed(ctx, &events.JoinFailed{Reason: "x"}))
}
