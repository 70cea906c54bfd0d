// Package llm adapts external text-generation providers to port.TextGenerator.
package llm

import (
	"fmt"

	"caseguard/internal/config"
	"caseguard/internal/port"
)

// ProviderFactory creates a TextGenerator from a provider config.
type ProviderFactory func(cfg *config.ProviderConfig) (port.TextGenerator, error)

// registry of provider factories, populated explicitly via RegisterProvider
// from the binary that wires the pipeline.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewGenerator creates a TextGenerator using the factory registered for cfg.Provider.
func NewGenerator(cfg *config.ProviderConfig) (port.TextGenerator, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewChain builds a generator for each config. A single provider is returned
// as is; several are wrapped in a FallbackGenerator in the given order.
func NewChain(cfgs []*config.ProviderConfig) (port.TextGenerator, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no llm providers configured")
	}
	gens := make([]port.TextGenerator, 0, len(cfgs))
	names := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		g, err := NewGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
		names = append(names, cfg.Provider)
	}
	if len(gens) == 1 {
		return gens[0], nil
	}
	return NewFallbackGenerator(gens, names), nil
}
