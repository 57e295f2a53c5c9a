// Package resolver implements C6: turning a client-supplied model id into an
// ordered list of canonical-model candidates, filtered to those that have at
// least one enabled provider binding.
package resolver

import (
	"github.com/relaygate/gateway/internal/registry"
)

// Result is the outcome of a resolution.
type Result struct {
	// ModelID is the raw id the candidate was resolved from (the alias
	// name, or the combo/modelId itself).
	ModelID string
	// CanonicalIDs is the ordered list of canonical model ids this
	// request may be served by, already filtered to those with at least
	// one enabled binding.
	CanonicalIDs []string
}

// Resolver is the C6 contract.
type Resolver interface {
	Resolve(modelID string, capabilities registry.CapabilitySet, tenantID string) Result
}

type resolver struct {
	reg *registry.Registry
}

// New builds a Resolver over reg.
func New(reg *registry.Registry) Resolver {
	return &resolver{reg: reg}
}

// candidateOrder produces the ordered list of canonical-id candidates for
// modelID per the precedence: tenant alias > global alias > modelId itself.
// Per the DB-shadowing Open Question decision (DESIGN.md), there is no
// further database-backed fallback tier.
func (r *resolver) candidateOrder(modelID, tenantID string) []string {
	var order []string
	if tenantID != "" {
		if ids := r.reg.ResolveAlias(registry.ScopeTenant, tenantID, modelID); len(ids) > 0 {
			order = append(order, ids...)
		}
	}
	if ids := r.reg.ResolveAlias(registry.ScopeGlobal, "", modelID); len(ids) > 0 {
		order = append(order, ids...)
	}
	order = append(order, modelID)
	return dedupe(order)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Resolve walks candidateOrder and returns the first canonical id (in
// alias-precedence order) that exists, matches the requested capabilities,
// and has at least one enabled binding. CanonicalIDs holds just that single
// winning id, or is empty if none of the candidates qualify — the smart
// router (C8) is responsible for fanning that single canonical id out across
// its bindings.
func (r *resolver) Resolve(modelID string, capabilities registry.CapabilitySet, tenantID string) Result {
	res := Result{ModelID: modelID}
	for _, canonicalID := range r.candidateOrder(modelID, tenantID) {
		model, ok := r.reg.LookupCanonical(canonicalID)
		if !ok {
			continue
		}
		if !model.Capabilities.Superset(capabilities) {
			continue
		}
		if !hasEnabledBinding(r.reg, canonicalID) {
			continue
		}
		res.CanonicalIDs = []string{canonicalID}
		return res
	}
	return res
}

func hasEnabledBinding(reg *registry.Registry, canonicalID string) bool {
	for _, b := range reg.BindingsFor(canonicalID) {
		if !b.Available {
			continue
		}
		if def, ok := reg.ProviderByKey(b.ProviderKey); ok && def.Enabled {
			return true
		}
	}
	return false
}
