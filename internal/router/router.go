// Package router implements C8: the smart router that composes the
// registry, health store, quota tracker, cost/capability view, resolver and
// score calculator into an ordered candidate list for one request.
package router

import (
	"context"
	"sort"

	"github.com/relaygate/gateway/internal/costview"
	"github.com/relaygate/gateway/internal/health"
	"github.com/relaygate/gateway/internal/quota"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/resolver"
	"github.com/relaygate/gateway/internal/scoring"
)

// EnrichedCandidate is one fully scored, orderable option the fallback
// orchestrator (C9) will attempt in sequence.
type EnrichedCandidate struct {
	CanonicalID string
	ProviderKey string
	Binding     registry.ProviderModelBinding
	Provider    registry.ProviderDefinition
	Score       float64
}

// QuotaKey derives the quota/health bucket key for a (provider, canonical)
// pairing; both C3 and C4 are keyed the same way so the router and the
// fallback orchestrator agree on identity.
func QuotaKey(providerKey, canonicalID string) string {
	return providerKey + ":" + canonicalID
}

// Router is the C8 contract.
type Router interface {
	Candidates(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID string, policy scoring.Policy) ([]EnrichedCandidate, error)
	// EmergencyCandidates is Candidates but skips the quota headroom
	// check, for the fallback orchestrator's last-resort tier. Health is
	// still honored — emergency mode ignores rate limiting, not outages.
	EmergencyCandidates(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID string, policy scoring.Policy) ([]EnrichedCandidate, error)
	// CapsFor resolves the effective RPM/TPM caps for a candidate, honoring
	// binding-level overrides the same way Candidates did when it enriched
	// the list. The fallback orchestrator uses this to re-check quota
	// immediately before invocation, since state may have changed since
	// enumeration.
	CapsFor(cand EnrichedCandidate) quota.Caps
}

type router struct {
	reg      *registry.Registry
	res      resolver.Resolver
	health   health.Store
	quota    quota.Tracker
	cost     costview.View
	baseCaps func(providerKey string) quota.Caps
}

// New builds a Router. baseCaps resolves a provider's configured RPM/TPM
// caps; a binding's RateLimitRPM/RateLimitTPM, when set, overrides them
// (see capsFor).
func New(reg *registry.Registry, res resolver.Resolver, h health.Store, q quota.Tracker, cv costview.View, baseCaps func(string) quota.Caps) Router {
	return &router{reg: reg, res: res, health: h, quota: q, cost: cv, baseCaps: baseCaps}
}

func (r *router) capsFor(providerKey string, binding registry.ProviderModelBinding) quota.Caps {
	caps := r.baseCaps(providerKey)
	if binding.RateLimitRPM != nil {
		caps.RPM = *binding.RateLimitRPM
	}
	if binding.RateLimitTPM != nil {
		caps.TPM = *binding.RateLimitTPM
	}
	return caps
}

func (r *router) CapsFor(cand EnrichedCandidate) quota.Caps {
	return r.capsFor(cand.ProviderKey, cand.Binding)
}

// qualityFor derives a static [0,1] quality factor from a provider's tier:
// tier 1 (preferred) scores highest, descending from there.
func qualityFor(tier int) float64 {
	switch {
	case tier <= 1:
		return 1.0
	case tier == 2:
		return 0.75
	case tier == 3:
		return 0.5
	default:
		return 0.25
	}
}

// safetyFor derives a [0,1] safety factor from recent request volume against
// the configured RPM ceiling: the closer to the ceiling, the less safety
// margin remains.
func safetyFor(requestsInWindow int, caps quota.Caps) float64 {
	if caps.RPM <= 0 {
		return 1
	}
	frac := float64(requestsInWindow) / float64(caps.RPM)
	if frac > 1 {
		frac = 1
	}
	return 1 - frac
}

const defaultLatencyCeilingMs = 5000

// Candidates resolves modelID to a canonical model (C6), filters its
// bindings to healthy providers with quota headroom, enriches each survivor
// with cost/latency/safety/quota factors (C5/C3/C4), scores them (C7), and
// orders free-first, score-descending, tier-ascending.
func (r *router) Candidates(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID string, policy scoring.Policy) ([]EnrichedCandidate, error) {
	return r.candidates(ctx, modelID, capabilities, tenantID, policy, false)
}

func (r *router) EmergencyCandidates(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID string, policy scoring.Policy) ([]EnrichedCandidate, error) {
	return r.candidates(ctx, modelID, capabilities, tenantID, policy, true)
}

func (r *router) candidates(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID string, policy scoring.Policy, ignoreQuota bool) ([]EnrichedCandidate, error) {
	resolved := r.res.Resolve(modelID, capabilities, tenantID)
	if len(resolved.CanonicalIDs) == 0 {
		return nil, nil
	}
	canonicalID := resolved.CanonicalIDs[0]

	bindings := r.reg.BindingsFor(canonicalID)
	candidates := make([]scoring.Candidate, 0, len(bindings))
	enriched := make(map[string]EnrichedCandidate, len(bindings))
	maxPrice := 0.0

	for _, b := range bindings {
		if !b.Available {
			continue
		}
		def, ok := r.reg.ProviderByKey(b.ProviderKey)
		if !ok || !def.Enabled {
			continue
		}
		key := QuotaKey(b.ProviderKey, canonicalID)
		if !r.health.IsHealthy(key) {
			continue
		}
		caps := r.capsFor(b.ProviderKey, b)
		if !ignoreQuota && !r.quota.CheckQuota(key, caps) {
			continue
		}

		cost := r.cost.CostOf(b.ProviderKey, canonicalID)
		latencyMs, hasLatency := r.cost.LatencyOf(b.ProviderKey)
		if !hasLatency {
			latencyMs = defaultLatencyCeilingMs / 2
		}

		c := scoring.Candidate{
			CanonicalID:      canonicalID,
			ProviderKey:      b.ProviderKey,
			Tier:             def.Tier,
			Quality:          qualityFor(def.Tier),
			QuotaRemaining:   float64(r.quota.Remaining(key, caps)) / 100,
			Safety:           safetyFor(r.quota.RequestsInWindow(key), caps),
			LatencyMs:        latencyMs,
			LatencyCeilingMs: defaultLatencyCeilingMs,
			InputPrice:       cost.InputPrice,
			OutputPrice:      cost.OutputPrice,
			FreeTier:         cost.FreeTier,
		}
		if p := c.InputPrice + c.OutputPrice; p > maxPrice {
			maxPrice = p
		}
		candidates = append(candidates, c)
		enriched[b.ProviderKey] = EnrichedCandidate{CanonicalID: canonicalID, ProviderKey: b.ProviderKey, Binding: b, Provider: def}
	}

	result := make([]EnrichedCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := scoring.Score(c, policy, maxPrice)
		if !scoring.MeetsThreshold(score, policy) {
			continue
		}
		ec := enriched[c.ProviderKey]
		ec.Score = score
		result = append(result, ec)
	}

	sort.SliceStable(result, func(i, j int) bool {
		fi, fj := result[i].Provider.Free, result[j].Provider.Free
		if fi != fj {
			return fi
		}
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Provider.Tier < result[j].Provider.Tier
	})
	return result, nil
}
