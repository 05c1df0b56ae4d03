package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trialscope/internal/service"
	"trialscope/internal/session"
)

// MockAnalysisService is a mock implementation of service.AnalysisService.
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) RunSearchBatch(ctx context.Context, st *session.State, input service.SearchBatchInput) (*service.BatchResult, error) {
	args := m.Called(ctx, st, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockAnalysisService) RunDocumentBatch(ctx context.Context, st *session.State, input service.DocumentBatchInput) (*service.BatchResult, error) {
	args := m.Called(ctx, st, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockAnalysisService) StartSearchBatch(st *session.State, input service.SearchBatchInput) error {
	args := m.Called(st, input)
	return args.Error(0)
}

func (m *MockAnalysisService) StartDocumentBatch(st *session.State, input service.DocumentBatchInput) error {
	args := m.Called(st, input)
	return args.Error(0)
}

func (m *MockAnalysisService) Wait() {
	m.Called()
}
