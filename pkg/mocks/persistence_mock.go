package mocks

import (
	"context"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockCaseRepository is a mock implementation of persistence.CaseRepository interface.
type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) Create(ctx context.Context, c *models.Case) error {
	args := m.Called(ctx, c)

	return args.Error(0)
}

func (m *MockCaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Case), args.Error(1)
}

func (m *MockCaseRepository) List(ctx context.Context, opts persistence.ListCasesOptions) (*persistence.CaseListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.CaseListResult), args.Error(1)
}

func (m *MockCaseRepository) Apply(ctx context.Context, id string, update *models.CaseUpdate) (*models.Case, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Case), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Cases *MockCaseRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{Cases: &MockCaseRepository{}}
}

func (m *MockPersistence) CaseRepository() persistence.CaseRepository {
	return m.Cases
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
