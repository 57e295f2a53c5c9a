package main

import (
	"fmt"
	"os"
	"time"

	"github.com/relaygate/gateway/config"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/providers/openaicompat"
)

// buildSnapshot translates the static config enumeration into a
// registry.Snapshot. Provider credentials are resolved from the environment
// variable named by ProviderConfig.CredentialRef, never stored in the YAML
// file itself.
func buildSnapshot(cfg *config.Config) *registry.Snapshot {
	models := make([]registry.CanonicalModel, 0, len(cfg.CanonicalModels.Entries))
	bindings := make([]registry.ProviderModelBinding, 0)
	for _, m := range cfg.CanonicalModels.Entries {
		models = append(models, registry.CanonicalModel{
			ID:              m.ID,
			Family:          m.Family,
			ContextWindow:   m.ContextWindow,
			MaxOutputTokens: m.MaxOutputTokens,
			Capabilities:    capabilitySetOf(m.Capabilities),
			ReleaseDate:     parseReleaseDate(m.ReleaseDate),
		})
		for _, b := range m.Bindings {
			bindings = append(bindings, registry.ProviderModelBinding{
				CanonicalID:         m.ID,
				ProviderKey:         b.ProviderKey,
				ProviderSpecificID:  b.ProviderSpecificID,
				Available:           b.Available,
				OverrideInputPrice:  b.OverrideInputPrice,
				OverrideOutputPrice: b.OverrideOutputPrice,
				RateLimitRPM:        b.RateLimitRPM,
				RateLimitTPM:        b.RateLimitTPM,
			})
		}
	}

	providers := make([]registry.ProviderDefinition, 0, len(cfg.Providers.Entries))
	for _, p := range cfg.Providers.Entries {
		providers = append(providers, registry.ProviderDefinition{
			Key:              p.Key,
			Kind:             registry.ProviderKind(p.Kind),
			BaseEndpoint:     p.BaseEndpoint,
			FallbackEndpoint: p.FallbackEndpoint,
			Tier:             p.Tier,
			Enabled:          p.Enabled,
			Free:             p.Free,
			Credential:       resolveCredential(p),
			DefaultRPM:       p.DefaultRPM,
			DefaultTPM:       p.DefaultTPM,
		})
	}

	aliases := make([]registry.Alias, 0, len(cfg.Aliases.Entries))
	for _, a := range cfg.Aliases.Entries {
		aliases = append(aliases, registry.Alias{
			Scope:      registry.AliasScope(a.Scope),
			TenantID:   a.TenantID,
			Name:       a.Name,
			Candidates: a.Candidates,
		})
	}

	return registry.NewSnapshot(models, providers, bindings, aliases)
}

// resolveCredential resolves a provider's opaque credential handle. Every
// provider kind this gateway speaks (openai-compatible) authenticates with a
// bearer API key, so CredentialRef always resolves to an
// openaicompat.Credential; a provider kind with a different credential shape
// would resolve to its own adapter's credential type here.
func resolveCredential(p config.ProviderConfig) any {
	if p.CredentialRef == "" {
		return nil
	}
	return openaicompat.Credential{APIKey: os.Getenv(p.CredentialRef)}
}

func capabilitySetOf(names []string) registry.CapabilitySet {
	caps := make([]registry.Capability, 0, len(names))
	for _, n := range names {
		caps = append(caps, registry.Capability(n))
	}
	return registry.NewCapabilitySet(caps...)
}

func parseReleaseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// validateProviderKinds fails fast if the config lists a provider kind no
// adapter in this build speaks.
func validateProviderKinds(cfg *config.Config) error {
	for _, p := range cfg.Providers.Entries {
		if registry.ProviderKind(p.Kind) != registry.KindOpenAICompatible {
			return fmt.Errorf("provider %q: unsupported kind %q (only %q is wired)", p.Key, p.Kind, registry.KindOpenAICompatible)
		}
	}
	return nil
}
