package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

// RunCaseRepositorySuite exercises the CaseRepository contract against a backend.
func RunCaseRepositorySuite(t *testing.T, newRepo func(t *testing.T) persistence.CaseRepository) {
	t.Helper()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		c := CreateTestCase(WithArtifact(models.StageRequirements, "draft", map[string]any{"pages": 3.0}, models.ReviewPending))
		require.NoError(t, repo.Create(ctx, c))

		got, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, c.Title, got.Title)
		assert.Equal(t, c.Owner, got.Owner)
		assert.Equal(t, models.StatusIntake, got.Status)
		assert.Equal(t, int64(1), got.Version)
		require.Len(t, got.History, 1)
		assert.Equal(t, models.EventCaseCreated, got.History[0].EventType)
		assert.Equal(t, "draft", got.Artifact(models.StageRequirements).Current().Content)
		assert.Equal(t, 3.0, got.Artifact(models.StageRequirements).Current().Data["pages"])
		assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

		err = repo.Create(ctx, c)
		require.ErrorIs(t, err, persistence.ErrCaseAlreadyExists)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByID(context.Background(), "missing")
		require.ErrorIs(t, err, persistence.ErrCaseNotFound)

		_, err = repo.Apply(context.Background(), "missing", &models.CaseUpdate{})
		require.ErrorIs(t, err, persistence.ErrCaseNotFound)
	})

	t.Run("apply checks and mutates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		c := CreateTestCase()
		require.NoError(t, repo.Create(ctx, c))

		updated, err := repo.Apply(ctx, c.ID, &models.CaseUpdate{
			ExpectStatuses: []models.CaseStatus{models.StatusIntake},
			ExpectStages:   map[models.Stage]models.CaseStatus{models.StageRequirements: ""},
			Status:         models.StatusRequirementsDrafting,
			SetStages:      map[models.Stage]models.CaseStatus{models.StageRequirements: models.StatusRequirementsDrafting},
			AddVersions: map[models.Stage]models.ArtifactVersion{
				models.StageRequirements: {Content: "first draft", Metadata: models.GenerationMetadata{Generator: "template"}},
			},
			History: []models.HistoryEntry{{
				Actor:      "alice",
				EventType:  models.EventStageGenerated,
				Stage:      models.StageRequirements,
				FromStatus: models.StatusIntake,
				ToStatus:   models.StatusRequirementsDrafting,
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusRequirementsDrafting, updated.Status)
		assert.Equal(t, int64(2), updated.Version)

		got, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRequirementsDrafting, got.Status)
		assert.Equal(t, models.StatusRequirementsDrafting, got.StageStatus(models.StageRequirements))
		require.Len(t, got.History, 2)
		assert.Equal(t, models.EventStageGenerated, got.History[1].EventType)
		assert.Equal(t, models.StatusIntake, got.History[1].FromStatus)
		assert.False(t, got.History[1].Timestamp.IsZero())

		current := got.Artifact(models.StageRequirements).Current()
		require.NotNil(t, current)
		assert.Equal(t, 1, current.Version)
		assert.Equal(t, models.ReviewPending, current.Review)

		_, err = repo.Apply(ctx, c.ID, &models.CaseUpdate{
			ExpectStatuses: []models.CaseStatus{models.StatusIntake},
			Status:         models.StatusAbandoned,
		})
		require.ErrorIs(t, err, persistence.ErrConditionFailed)

		unchanged, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRequirementsDrafting, unchanged.Status)
		assert.Equal(t, int64(2), unchanged.Version)
		assert.Len(t, unchanged.History, 2)
	})

	t.Run("concurrent conditional updates have one winner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		c := CreateTestCase(
			WithStatus(models.StatusCostApproved),
			WithLane(models.StageCost, models.StatusCostApproved),
		)
		require.NoError(t, repo.Create(ctx, c))

		const contenders = 8

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)

		for range contenders {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := repo.Apply(ctx, c.ID, &models.CaseUpdate{
					ExpectStatuses:    []models.CaseStatus{models.StatusCostApproved, models.StatusValueApproved},
					RequireNoArtifact: []models.Stage{models.StageFinancial},
					Status:            models.StatusJoinInProgress,
					History:           []models.HistoryEntry{{Actor: models.SystemActor, EventType: models.EventJoinStarted}},
				})
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()

					return
				}

				assert.ErrorIs(t, err, persistence.ErrConditionFailed)
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, winners)

		got, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusJoinInProgress, got.Status)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("list filters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		old := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Millisecond)

		stalled := CreateTestCase(WithOwner("bob"), WithStatus(models.StatusJoinInProgress), WithUpdatedAt(old))
		fresh := CreateTestCase(WithOwner("bob"))
		other := CreateTestCase(WithOwner("carol"))

		for _, c := range []*models.Case{stalled, fresh, other} {
			require.NoError(t, repo.Create(ctx, c))
		}

		result, err := repo.List(ctx, persistence.ListCasesOptions{Owner: "bob"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.TotalCount)
		assert.Len(t, result.Cases, 2)

		result, err = repo.List(ctx, persistence.ListCasesOptions{
			Status:        models.StatusJoinInProgress,
			UpdatedBefore: time.Now().UTC().Add(-time.Hour),
		})
		require.NoError(t, err)
		require.Len(t, result.Cases, 1)
		assert.Equal(t, stalled.ID, result.Cases[0].ID)

		result, err = repo.List(ctx, persistence.ListCasesOptions{Limit: 1, SortBy: "created_at", SortOrder: "asc"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.TotalCount)
		assert.Len(t, result.Cases, 1)
		assert.True(t, result.HasNextPage)

		_, err = repo.List(ctx, persistence.ListCasesOptions{SortBy: "owner"})
		require.ErrorIs(t, err, persistence.ErrInvalidListOptions)
	})
}
