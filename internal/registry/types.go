package registry

import "time"

// Capability is one of the capability flags a canonical model may advertise
// and a request may require.
type Capability string

const (
	CapStreaming        Capability = "streaming"
	CapTools             Capability = "tools"
	CapVision            Capability = "vision"
	CapStructuredOutput  Capability = "structuredOutput"
	CapLogProbs          Capability = "logProbs"
	CapAudio             Capability = "audio"
	CapReasoning         Capability = "reasoning"
)

// CapabilitySet is a small set of Capability values; nil/empty means "no
// requirements".
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a CapabilitySet from a list of flags.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Superset reports whether s contains every capability in required.
func (s CapabilitySet) Superset(required CapabilitySet) bool {
	for c := range required {
		if _, ok := s[c]; !ok {
			return false
		}
	}
	return true
}

// CanonicalModel is the gateway-stable identity of a model, independent of
// which upstream serves it. id is immutable once loaded.
type CanonicalModel struct {
	ID              string
	Family          string
	ContextWindow   int
	MaxOutputTokens int
	Capabilities    CapabilitySet
	ReleaseDate     *time.Time
}

// ProviderKind enumerates the wire dialects a ProviderDefinition may speak.
type ProviderKind string

const (
	KindOpenAICompatible ProviderKind = "openai-compatible"
	KindAnthropicStyle   ProviderKind = "anthropic-style"
	KindCloudflareAI     ProviderKind = "cloudflare-ai"
	KindGemini           ProviderKind = "gemini"
	KindGeneric          ProviderKind = "generic"
)

// ProviderDefinition describes one upstream service.
type ProviderDefinition struct {
	Key              string
	Kind             ProviderKind
	BaseEndpoint     string
	FallbackEndpoint string
	Tier             int
	Enabled          bool
	Free             bool
	// Credential is an opaque handle resolved by the external credential
	// store; the registry never inspects it.
	Credential any
	DefaultRPM int
	DefaultTPM int
}

// ProviderModelBinding maps a canonical model onto one provider's
// provider-specific identifier and optional overrides.
type ProviderModelBinding struct {
	CanonicalID         string
	ProviderKey         string
	ProviderSpecificID  string
	Available           bool
	OverrideInputPrice  *float64
	OverrideOutputPrice *float64
	RateLimitRPM        *int
	RateLimitTPM        *int
}

// AliasScope distinguishes tenant-local from globally visible aliases.
type AliasScope string

const (
	ScopeGlobal AliasScope = "global"
	ScopeTenant AliasScope = "tenant"
)

// Alias maps a (scope, name) pair, optionally qualified by tenant, to an
// ordered candidate list of canonical ids. Order is semantically
// significant: try the first, then the next.
type Alias struct {
	Scope      AliasScope
	TenantID   string // empty for ScopeGlobal
	Name       string
	Candidates []string
}
