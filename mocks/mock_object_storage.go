package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"trialscope/internal/port"
)

// MockObjectStorage is a mock implementation of port.ObjectStorage.
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Put(ctx context.Context, obj port.ArchiveObject) (string, error) {
	args := m.Called(ctx, obj)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStorage) PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, filename, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStorage) DeleteKeys(ctx context.Context, keys []string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}
