package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trialscope/internal/domain"
	"trialscope/internal/port"
)

// MockDocumentIngestor is a mock implementation of port.DocumentIngestor.
type MockDocumentIngestor struct {
	mock.Mock
}

func (m *MockDocumentIngestor) Ingest(ctx context.Context, input port.IngestInput) (*domain.DocumentText, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentText), args.Error(1)
}
