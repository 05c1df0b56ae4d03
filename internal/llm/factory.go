package llm

import (
	"fmt"
	"sort"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/port"
)

// ProviderFactory creates a Completer from a provider config.
type ProviderFactory func(cfg *config.ProviderConfig) (port.Completer, error)

// registry of completion provider factories, populated by init() in each
// provider package or explicitly via RegisterProvider.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a completion provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewCompleter creates a Completer using the registered factory.
func NewCompleter(cfg *config.ProviderConfig) (port.Completer, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, cfg.Provider)
	}
	return factory(cfg)
}
