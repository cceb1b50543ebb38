package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/mocks"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence/file"
)

func TestNewCase(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewCase(persistence, nil)

	assert.NotNil(t, service)
	assert.Equal(t, persistence, service.persistence)
}

func TestCase_Create(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := NewCase(persistence, bus)

	created, err := service.Create(t.Context(), CreateCaseRequest{
		Owner:       " alice ",
		Title:       "New billing system",
		Description: "Replace the legacy invoicing tool",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Owner)
	assert.Equal(t, models.StatusIntake, created.Status)
	assert.Equal(t, int64(1), created.Version)
	assert.False(t, created.CreatedAt.IsZero())
	require.Len(t, created.History, 1)
	assert.Equal(t, models.EventCaseCreated, created.History[0].EventType)

	stored, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, stored.Title)

	assert.Equal(t, []events.EventType{events.CaseCreatedEvent}, bus.PublishedTypes())
	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.Anything)
}

func TestCase_Create_Validation(t *testing.T) {
	service := NewCase(file.NewPersistence(t.TempDir()), nil)

	tests := []struct {
		name string
		req  CreateCaseRequest
	}{
		{name: "missing owner", req: CreateCaseRequest{Title: "New billing system"}},
		{name: "missing title", req: CreateCaseRequest{Owner: "alice"}},
		{name: "short title", req: CreateCaseRequest{Owner: "alice", Title: "ab"}},
		{name: "blank owner", req: CreateCaseRequest{Owner: "   ", Title: "New billing system"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(t.Context(), tt.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCase_Create_PublishFailure(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	service := NewCase(file.NewPersistence(t.TempDir()), bus)

	created, err := service.Create(t.Context(), CreateCaseRequest{Owner: "alice", Title: "New billing system"})
	require.Error(t, err)
	require.NotNil(t, created, "the case is stored even when the event is lost")
	assert.False(t, IsValidationError(err))

	_, err = service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
}

func TestCase_FetchByID(t *testing.T) {
	service := NewCase(file.NewPersistence(t.TempDir()), nil)

	_, err := service.FetchByID(t.Context(), "")
	require.ErrorIs(t, err, ErrEmptyCaseID)

	_, err = service.FetchByID(t.Context(), "missing")
	require.ErrorIs(t, err, ErrCaseNotFound)
}

func TestCase_List(t *testing.T) {
	service := NewCase(file.NewPersistence(t.TempDir()), nil)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, owner := range []string{"alice", "bob", "alice"} {
		service.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }

		_, err := service.Create(t.Context(), CreateCaseRequest{Owner: owner, Title: "Case number " + owner})
		require.NoError(t, err)
	}

	result, err := service.List(t.Context(), ListCasesRequest{})
	require.NoError(t, err)
	assert.Len(t, result.Cases, 3)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.False(t, result.HasNextPage)

	result, err = service.List(t.Context(), ListCasesRequest{Owner: "alice", SortBy: "created_at", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, result.Cases, 2)
	assert.True(t, result.Cases[0].CreatedAt.Before(result.Cases[1].CreatedAt))

	result, err = service.List(t.Context(), ListCasesRequest{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Cases, 1)
	assert.True(t, result.HasNextPage)

	result, err = service.List(t.Context(), ListCasesRequest{Status: models.StatusFinalApproved})
	require.NoError(t, err)
	assert.Empty(t, result.Cases)
}

func TestCase_List_Validation(t *testing.T) {
	service := NewCase(file.NewPersistence(t.TempDir()), nil)

	tests := []struct {
		name string
		req  ListCasesRequest
		err  error
	}{
		{name: "limit too large", req: ListCasesRequest{Limit: 500}, err: ErrInvalidRequest},
		{name: "negative offset", req: ListCasesRequest{Offset: -1}, err: ErrInvalidRequest},
		{name: "sort field", req: ListCasesRequest{SortBy: "owner"}, err: ErrInvalidRequest},
		{name: "sort order", req: ListCasesRequest{SortOrder: "sideways"}, err: ErrInvalidRequest},
		{name: "unknown status", req: ListCasesRequest{Status: "archived"}, err: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.List(t.Context(), tt.req)
			require.ErrorIs(t, err, tt.err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCase_HealthCheck(t *testing.T) {
	service := NewCase(file.NewPersistence(t.TempDir()), nil)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	persistence := mocks.NewMockPersistence()
	persistence.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	message, ok = NewCase(persistence, nil).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "connection refused")

	message, ok = (&Case{}).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer not initialized", message)
}
