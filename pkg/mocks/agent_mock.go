package mocks

import (
	"context"

	"github.com/dukex/casegate/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockStageAgent is a mock implementation of protocol.StageAgent interface.
type MockStageAgent struct {
	mock.Mock
}

func (m *MockStageAgent) Generate(ctx context.Context, req protocol.GenerationRequest) protocol.Result {
	args := m.Called(ctx, req)

	return args.Get(0).(protocol.Result)
}
