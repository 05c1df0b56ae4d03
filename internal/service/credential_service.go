package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/llm"
	"trialscope/internal/session"
)

// CredentialInput is the DTO for choosing a completion provider.
type CredentialInput struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// ProviderCatalog describes the models offered for one provider.
type ProviderCatalog struct {
	Provider     domain.Provider `json:"provider"`
	DefaultModel string          `json:"default_model"`
	Models       []string        `json:"models"`
}

// CredentialService validates API keys and records them on a session.
type CredentialService interface {
	Validate(ctx context.Context, st *session.State, input CredentialInput) (domain.ProviderSettings, error)
	Catalogs() []ProviderCatalog
}

type credentialService struct {
	cfg config.LLMConfig
}

// NewCredentialService creates a new CredentialService implementation.
func NewCredentialService(cfg config.LLMConfig) CredentialService {
	return &credentialService{cfg: cfg}
}

// Validate checks the key by listing the provider's models. The session's
// credential is marked invalid on any failure so batches stay gated.
func (s *credentialService) Validate(ctx context.Context, st *session.State, input CredentialInput) (domain.ProviderSettings, error) {
	name := input.Provider
	if name == "" {
		name = s.cfg.Provider
	}
	provider, err := domain.ParseProvider(name)
	if err != nil {
		return domain.ProviderSettings{}, err
	}

	catalog, _ := s.cfg.Catalog(string(provider))
	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = catalog.DefaultModel
	}
	if len(catalog.Models) > 0 && !catalog.Has(model) {
		return domain.ProviderSettings{}, fmt.Errorf("%w: %s/%s", domain.ErrUnknownModel, provider, model)
	}

	settings := domain.ProviderSettings{Provider: provider, Model: model, APIKey: strings.TrimSpace(input.APIKey)}
	if settings.APIKey == "" {
		st.SetCredential(settings, false)
		return settings, fmt.Errorf("%w: api key is empty", domain.ErrCredentialInvalid)
	}

	completer, err := llm.NewCompleter(s.cfg.ProviderConfig(string(provider), settings.APIKey, model))
	if err != nil {
		st.SetCredential(settings, false)
		return settings, err
	}
	if _, err := completer.ListModels(ctx); err != nil {
		st.SetCredential(settings, false)
		log.Warn().Err(err).Str("session_id", st.ID()).Str("provider", string(provider)).
			Msg("credentialService.Validate: key rejected")
		return settings, fmt.Errorf("%w: %w", domain.ErrCredentialInvalid, err)
	}

	st.SetCredential(settings, true)
	log.Info().Str("session_id", st.ID()).Str("provider", string(provider)).Str("model", model).
		Msg("credentialService.Validate: credential accepted")
	return settings, nil
}

func (s *credentialService) Catalogs() []ProviderCatalog {
	out := make([]ProviderCatalog, 0, 2)
	for _, p := range []domain.Provider{domain.ProviderOpenAI, domain.ProviderAnthropic} {
		catalog, _ := s.cfg.Catalog(string(p))
		out = append(out, ProviderCatalog{Provider: p, DefaultModel: catalog.DefaultModel, Models: catalog.Models})
	}
	return out
}
