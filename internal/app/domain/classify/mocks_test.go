package classify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dinefind/dinefind/internal/app/domain/llm"
)

// MockAIClient is a mock implementation of llm.AIClient
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) GenerateStructured(ctx context.Context, in llm.GenerateInput) (*llm.GenerateOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.GenerateOutput), args.Error(1)
}
