package scoring

import (
	"testing"

	"pgregory.net/rapid"
)

func genUnitFloat(t *rapid.T, label string) float64 {
	return rapid.Float64Range(0, 1).Draw(t, label)
}

func genCandidate(t *rapid.T) Candidate {
	return Candidate{
		CanonicalID:      rapid.StringMatching(`[a-z0-9-]{3,12}`).Draw(t, "canonicalId"),
		ProviderKey:      rapid.StringMatching(`[a-z0-9-]{3,12}`).Draw(t, "providerKey"),
		Tier:             rapid.IntRange(1, 4).Draw(t, "tier"),
		Quality:          genUnitFloat(t, "quality"),
		QuotaRemaining:   genUnitFloat(t, "quotaRemaining"),
		Safety:           genUnitFloat(t, "safety"),
		LatencyMs:        rapid.Float64Range(0, 5000).Draw(t, "latencyMs"),
		LatencyCeilingMs: rapid.Float64Range(100, 5000).Draw(t, "latencyCeilingMs"),
		InputPrice:       rapid.Float64Range(0, 5).Draw(t, "inputPrice"),
		OutputPrice:      rapid.Float64Range(0, 5).Draw(t, "outputPrice"),
		FreeTier:         rapid.Bool().Draw(t, "freeTier"),
	}
}

func genPolicy(t *rapid.T) Policy {
	return Policy{
		WeightQuality:     rapid.Float64Range(0, 1).Draw(t, "weightQuality"),
		WeightQuota:       rapid.Float64Range(0, 1).Draw(t, "weightQuota"),
		WeightSafety:      rapid.Float64Range(0, 1).Draw(t, "weightSafety"),
		WeightLatency:     rapid.Float64Range(0, 1).Draw(t, "weightLatency"),
		PreferFree:        rapid.Bool().Draw(t, "preferFree"),
		FreeTierBonus:     rapid.Float64Range(0, 10).Draw(t, "freeTierBonus"),
		MinScoreThreshold: rapid.Float64Range(0, 100).Draw(t, "minScoreThreshold"),
	}
}

// TestProperty_ScoreIsDeterministic: Score is a pure function of its
// arguments — calling it twice on the same candidate, policy, and maxPrice
// always yields the same result, with no hidden time- or order-dependent
// state.
func TestProperty_ScoreIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cand := genCandidate(rt)
		policy := genPolicy(rt)
		maxPrice := rapid.Float64Range(0, 20).Draw(rt, "maxPrice")

		first := Score(cand, policy, maxPrice)
		second := Score(cand, policy, maxPrice)
		if first != second {
			rt.Fatalf("Score is not deterministic: %v != %v for candidate=%+v policy=%+v maxPrice=%v", first, second, cand, policy, maxPrice)
		}
	})
}

// TestProperty_ScoreBoundedByWeightSum: the weighted formula can never
// produce a score above 100*(sum of weights + fixed cost weight) plus the
// free-tier bonus, regardless of input magnitude — every factor is clamped
// to [0,1] before it's weighted.
func TestProperty_ScoreBoundedByWeightSum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cand := genCandidate(rt)
		policy := genPolicy(rt)
		maxPrice := rapid.Float64Range(0, 20).Draw(rt, "maxPrice")

		score := Score(cand, policy, maxPrice)
		ceiling := 100*(policy.WeightQuality+policy.WeightQuota+policy.WeightSafety+policy.WeightLatency+costWeight) + policy.FreeTierBonus
		if score > ceiling+1e-9 {
			rt.Fatalf("score %v exceeds theoretical ceiling %v for policy=%+v", score, ceiling, policy)
		}
	})
}
