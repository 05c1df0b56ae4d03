package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trialscope/internal/service"
	"trialscope/internal/session"
)

// MockExportService is a mock implementation of service.ExportService.
type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) Export(st *session.State, rows []int, format service.ExportFormat) (*service.ExportFile, error) {
	args := m.Called(st, rows, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}

func (m *MockExportService) Archive(ctx context.Context, st *session.State, rows []int) (*service.ArchiveResult, error) {
	args := m.Called(ctx, st, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ArchiveResult), args.Error(1)
}

func (m *MockExportService) Text(st *session.State, index int) (*service.ExportFile, error) {
	args := m.Called(st, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}

func (m *MockExportService) Purge(ctx context.Context, sessionID string) {
	m.Called(ctx, sessionID)
}
