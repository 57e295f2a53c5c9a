package resolver

import (
	"testing"

	"github.com/relaygate/gateway/internal/registry"
)

func sampleSnapshot() *registry.Snapshot {
	return registry.NewSnapshot(
		[]registry.CanonicalModel{
			{ID: "deepseek-chat", Capabilities: registry.NewCapabilitySet(registry.CapStreaming)},
			{ID: "vision-model", Capabilities: registry.NewCapabilitySet(registry.CapVision)},
		},
		[]registry.ProviderDefinition{
			{Key: "deepseek", Enabled: true},
			{Key: "disabled-provider", Enabled: false},
		},
		[]registry.ProviderModelBinding{
			{CanonicalID: "deepseek-chat", ProviderKey: "deepseek", Available: true},
			{CanonicalID: "vision-model", ProviderKey: "disabled-provider", Available: true},
		},
		[]registry.Alias{
			{Scope: registry.ScopeGlobal, Name: "chat", Candidates: []string{"deepseek-chat"}},
			{Scope: registry.ScopeTenant, TenantID: "acme", Name: "chat", Candidates: []string{"deepseek-chat"}},
		},
	)
}

func TestResolveFallsThroughToModelIDItself(t *testing.T) {
	r := New(registry.New(sampleSnapshot()))
	res := r.Resolve("deepseek-chat", nil, "")
	if len(res.CanonicalIDs) != 1 || res.CanonicalIDs[0] != "deepseek-chat" {
		t.Fatalf("expected direct canonical id match, got %+v", res)
	}
}

func TestResolveUsesGlobalAlias(t *testing.T) {
	r := New(registry.New(sampleSnapshot()))
	res := r.Resolve("chat", nil, "")
	if len(res.CanonicalIDs) != 1 || res.CanonicalIDs[0] != "deepseek-chat" {
		t.Fatalf("expected alias to resolve to deepseek-chat, got %+v", res)
	}
}

func TestResolveEmptyWhenNoEnabledBinding(t *testing.T) {
	r := New(registry.New(sampleSnapshot()))
	res := r.Resolve("vision-model", nil, "")
	if len(res.CanonicalIDs) != 0 {
		t.Fatalf("expected no candidates since only binding's provider is disabled, got %+v", res)
	}
}

func TestResolveFiltersByCapability(t *testing.T) {
	r := New(registry.New(sampleSnapshot()))
	res := r.Resolve("deepseek-chat", registry.NewCapabilitySet(registry.CapVision), "")
	if len(res.CanonicalIDs) != 0 {
		t.Fatalf("expected no match: deepseek-chat lacks vision capability, got %+v", res)
	}
}
