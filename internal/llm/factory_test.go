package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/llm"
	"trialscope/internal/port"
)

func TestFactory_RegisterAndCreate(t *testing.T) {
	llm.RegisterProvider("test-provider", func(cfg *config.ProviderConfig) (port.Completer, error) {
		return &stubCompleter{model: cfg.Model}, nil
	})

	c, err := llm.NewCompleter(&config.ProviderConfig{
		Provider: "test-provider",
		Model:    "test-model",
	})

	assert.NoError(t, err)
	assert.NotNil(t, c)
	assert.Contains(t, llm.Providers(), "test-provider")
}

func TestFactory_UnknownProvider(t *testing.T) {
	c, err := llm.NewCompleter(&config.ProviderConfig{
		Provider: "nonexistent-provider-xyz",
	})

	assert.Nil(t, c)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

// stubCompleter is a minimal Completer for testing the factory.
type stubCompleter struct {
	model string
}

func (s *stubCompleter) Complete(_ context.Context, _ port.CompletionRequest) (string, error) {
	return "{}", nil
}

func (s *stubCompleter) ListModels(_ context.Context) ([]string, error) {
	return []string{s.model}, nil
}
