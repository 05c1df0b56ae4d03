package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trialscope/internal/domain"
)

// MockLiteratureSearcher is a mock implementation of port.LiteratureSearcher.
type MockLiteratureSearcher struct {
	mock.Mock
}

func (m *MockLiteratureSearcher) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchRecord, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchRecord), args.Error(1)
}
