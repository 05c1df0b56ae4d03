package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trialscope/internal/domain"
	"trialscope/internal/service"
	"trialscope/internal/session"
)

// MockCredentialService is a mock implementation of service.CredentialService.
type MockCredentialService struct {
	mock.Mock
}

func (m *MockCredentialService) Validate(ctx context.Context, st *session.State, input service.CredentialInput) (domain.ProviderSettings, error) {
	args := m.Called(ctx, st, input)
	return args.Get(0).(domain.ProviderSettings), args.Error(1)
}

func (m *MockCredentialService) Catalogs() []service.ProviderCatalog {
	args := m.Called()
	return args.Get(0).([]service.ProviderCatalog)
}
