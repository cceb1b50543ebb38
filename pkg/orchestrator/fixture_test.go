package orchestrator_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/agents/templateagent"
	"github.com/dukex/casegate/pkg/config"
	"github.com/dukex/casegate/pkg/mocks"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/orchestrator"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/persistence/file"
	"github.com/dukex/casegate/pkg/protocol"
	"github.com/dukex/casegate/pkg/registry"
	"github.com/dukex/casegate/pkg/testutil"
)

type fixture struct {
	repo   persistence.CaseRepository
	agents *registry.Registry
	bus    *mocks.MockEventBus
	orch   *orchestrator.Orchestrator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires the orchestrator to a file store and template agents for every stage.
func newFixture(t *testing.T, opts ...orchestrator.Option) *fixture {
	t.Helper()

	repo := file.NewPersistence(t.TempDir()).CaseRepository()

	agents := registry.NewRegistry(discardLogger())
	agents.RegisterFactory(templateagent.NewFactory())
	require.NoError(t, agents.Configure(config.DefaultAgentsConfig()))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	opts = append([]orchestrator.Option{orchestrator.WithEventPublisher(bus)}, opts...)

	return &fixture{
		repo:   repo,
		agents: agents,
		bus:    bus,
		orch:   orchestrator.New(repo, agents, discardLogger(), opts...),
	}
}

func (f *fixture) newCase(t *testing.T, overrides ...func(*models.Case)) *models.Case {
	t.Helper()

	c := testutil.CreateTestCase(overrides...)
	require.NoError(t, f.repo.Create(context.Background(), c))

	return c
}

func (f *fixture) get(t *testing.T, id string) *models.Case {
	t.Helper()

	c, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	return c
}

func req(caseID string, stage models.Stage) orchestrator.Request {
	return orchestrator.Request{CaseID: caseID, Stage: stage, Actor: "reviewer"}
}

// approveStage submits and approves the current draft of stage.
func (f *fixture) approveStage(t *testing.T, caseID string, stage models.Stage) *orchestrator.Result {
	t.Helper()

	ctx := context.Background()

	_, err := f.orch.RequestApproval(ctx, req(caseID, stage))
	require.NoError(t, err)

	result, err := f.orch.Approve(ctx, req(caseID, stage))
	require.NoError(t, err)

	return result
}

// toBranches drives a new case until cost and value are both drafting.
func (f *fixture) toBranches(t *testing.T) *models.Case {
	t.Helper()

	c := f.newCase(t)

	_, err := f.orch.Start(context.Background(), req(c.ID, ""))
	require.NoError(t, err)

	f.approveStage(t, c.ID, models.StageRequirements)
	f.approveStage(t, c.ID, models.StageDesign)

	c = f.get(t, c.ID)
	require.Equal(t, models.StatusCostDrafting, c.StageStatus(models.StageCost))
	require.Equal(t, models.StatusValueDrafting, c.StageStatus(models.StageValue))

	return c
}

// toPendingBranches leaves both cost and value pending review.
func (f *fixture) toPendingBranches(t *testing.T) *models.Case {
	t.Helper()

	c := f.toBranches(t)

	for _, stage := range []models.Stage{models.StageCost, models.StageValue} {
		_, err := f.orch.RequestApproval(context.Background(), req(c.ID, stage))
		require.NoError(t, err)
	}

	return f.get(t, c.ID)
}

type agentFunc func(ctx context.Context, req protocol.GenerationRequest) protocol.Result

func (fn agentFunc) Generate(ctx context.Context, req protocol.GenerationRequest) protocol.Result {
	return fn(ctx, req)
}

func failingAgent(reason string) agentFunc {
	return func(context.Context, protocol.GenerationRequest) protocol.Result {
		return protocol.Failed(reason, nil)
	}
}

func countEvents(c *models.Case, eventType models.EventType) int {
	n := 0

	for _, entry := range c.History {
		if entry.EventType == eventType {
			n++
		}
	}

	return n
}
