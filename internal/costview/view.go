// Package costview implements C5: a read-only projection of per-(provider,
// model) pricing and free-tier status, plus a per-provider latency EMA
// updated on every successful invocation.
package costview

import (
	"sync"

	"github.com/relaygate/gateway/internal/registry"
)

// Cost describes the pricing facts the score calculator needs.
type Cost struct {
	InputPrice  float64 // $ per token
	OutputPrice float64
	FreeTier    bool
}

// View is the C5 contract.
type View interface {
	CostOf(providerKey, canonicalID string) Cost
	// LatencyOf returns the current EMA latency in milliseconds for
	// providerKey, or ok=false if no successful invocation has been
	// observed yet.
	LatencyOf(providerKey string) (ms float64, ok bool)
	// Observe folds a new successful-invocation latency sample into the
	// EMA for providerKey (alpha ~= 0.2, per spec).
	Observe(providerKey string, latencyMs float64)
}

const emaAlpha = 0.2

type view struct {
	reg *registry.Registry

	mu      sync.RWMutex
	latency map[string]float64
}

// New builds a View backed by reg for static pricing/free-tier lookups and
// an in-process EMA for latency.
func New(reg *registry.Registry) View {
	return &view{reg: reg, latency: make(map[string]float64)}
}

func (v *view) CostOf(providerKey, canonicalID string) Cost {
	def, _ := v.reg.ProviderByKey(providerKey)
	cost := Cost{FreeTier: def.Free}

	for _, b := range v.reg.BindingsFor(canonicalID) {
		if b.ProviderKey != providerKey {
			continue
		}
		if b.OverrideInputPrice != nil {
			cost.InputPrice = *b.OverrideInputPrice
		}
		if b.OverrideOutputPrice != nil {
			cost.OutputPrice = *b.OverrideOutputPrice
		}
		break
	}
	return cost
}

func (v *view) LatencyOf(providerKey string) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ms, ok := v.latency[providerKey]
	return ms, ok
}

func (v *view) Observe(providerKey string, latencyMs float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cur, ok := v.latency[providerKey]
	if !ok {
		v.latency[providerKey] = latencyMs
		return
	}
	v.latency[providerKey] = emaAlpha*latencyMs + (1-emaAlpha)*cur
}
