package registry

import "testing"

func sampleSnapshot() *Snapshot {
	models := []CanonicalModel{
		{ID: "deepseek-chat", Family: "deepseek", Capabilities: NewCapabilitySet(CapStreaming)},
	}
	providers := []ProviderDefinition{
		{Key: "deepseek", Enabled: true, Free: false},
		{Key: "openrouter", Enabled: true, Free: true},
	}
	bindings := []ProviderModelBinding{
		{CanonicalID: "deepseek-chat", ProviderKey: "deepseek", ProviderSpecificID: "deepseek-chat", Available: true},
		{CanonicalID: "deepseek-chat", ProviderKey: "openrouter", ProviderSpecificID: "deepseek/deepseek-chat", Available: true},
	}
	aliases := []Alias{
		{Scope: ScopeGlobal, Name: "chat", Candidates: []string{"deepseek-chat"}},
		{Scope: ScopeTenant, TenantID: "acme", Name: "chat", Candidates: []string{"deepseek-chat"}},
	}
	return NewSnapshot(models, providers, bindings, aliases)
}

func TestLookupCanonical(t *testing.T) {
	r := New(sampleSnapshot())
	if _, ok := r.LookupCanonical("deepseek-chat"); !ok {
		t.Fatal("expected canonical model to be found")
	}
	if _, ok := r.LookupCanonical("nonexistent"); ok {
		t.Fatal("expected nonexistent model to be absent")
	}
}

func TestResolveAliasTenantShadowsGlobal(t *testing.T) {
	r := New(sampleSnapshot())
	global := r.ResolveAlias(ScopeGlobal, "", "chat")
	if len(global) != 1 || global[0] != "deepseek-chat" {
		t.Fatalf("unexpected global alias resolution: %v", global)
	}
	tenant := r.ResolveAlias(ScopeTenant, "acme", "chat")
	if len(tenant) != 1 || tenant[0] != "deepseek-chat" {
		t.Fatalf("unexpected tenant alias resolution: %v", tenant)
	}
	other := r.ResolveAlias(ScopeTenant, "other-tenant", "chat")
	if other != nil {
		t.Fatalf("expected no tenant alias for unrelated tenant, got %v", other)
	}
}

func TestBindingsFor(t *testing.T) {
	r := New(sampleSnapshot())
	bindings := r.BindingsFor("deepseek-chat")
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
}

func TestCapabilityMatch(t *testing.T) {
	r := New(sampleSnapshot())
	if !r.CapabilityMatch("deepseek-chat", NewCapabilitySet(CapStreaming)) {
		t.Fatal("expected streaming capability to match")
	}
	if r.CapabilityMatch("deepseek-chat", NewCapabilitySet(CapVision)) {
		t.Fatal("expected vision capability to not match")
	}
}

func TestSwapIsAtomicAndVisibleOnNextRead(t *testing.T) {
	r := New(sampleSnapshot())
	before := r.Current()
	next := NewSnapshot(nil, nil, nil, nil)
	r.Swap(next)
	if r.Current() == before {
		t.Fatal("expected Current() to observe the swapped snapshot")
	}
	if _, ok := r.LookupCanonical("deepseek-chat"); ok {
		t.Fatal("expected lookup against new empty snapshot to miss")
	}
}
