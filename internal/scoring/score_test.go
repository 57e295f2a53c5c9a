package scoring

import "testing"

func TestScoreFreeCandidateGetsBonus(t *testing.T) {
	policy := Default()
	free := Candidate{Quality: 0.8, QuotaRemaining: 0.8, Safety: 0.8, FreeTier: true}
	paid := Candidate{Quality: 0.8, QuotaRemaining: 0.8, Safety: 0.8, InputPrice: 1, OutputPrice: 1}

	freeScore := Score(free, policy, 2)
	paidScore := Score(paid, policy, 2)
	if freeScore <= paidScore {
		t.Fatalf("expected free candidate to outscore paid one: free=%v paid=%v", freeScore, paidScore)
	}
}

func TestScoreLatencyFactorPenalizesSlowCandidates(t *testing.T) {
	policy := Default()
	fast := Candidate{Quality: 0.5, QuotaRemaining: 0.5, Safety: 0.5, LatencyMs: 50, LatencyCeilingMs: 1000}
	slow := Candidate{Quality: 0.5, QuotaRemaining: 0.5, Safety: 0.5, LatencyMs: 900, LatencyCeilingMs: 1000}

	if Score(fast, policy, 0) <= Score(slow, policy, 0) {
		t.Fatal("expected faster candidate to score higher")
	}
}

func TestMeetsThresholdFiltersLowScores(t *testing.T) {
	policy := Default()
	policy.MinScoreThreshold = 50
	if MeetsThreshold(10, policy) {
		t.Fatal("expected score below threshold to fail")
	}
	if !MeetsThreshold(60, policy) {
		t.Fatal("expected score above threshold to pass")
	}
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	base := Default()
	bonus := 20.0
	merged := Merge(base, Override{FreeTierBonus: &bonus})
	if merged.FreeTierBonus != 20 {
		t.Fatalf("expected override bonus to apply, got %v", merged.FreeTierBonus)
	}
	if merged.WeightQuality != base.WeightQuality {
		t.Fatal("expected unset fields to inherit from base")
	}
}

func TestMergeLayersTenantThenUser(t *testing.T) {
	base := Default()
	tenantBonus := 10.0
	userBonus := 30.0
	merged := Merge(base, Override{FreeTierBonus: &tenantBonus}, Override{FreeTierBonus: &userBonus})
	if merged.FreeTierBonus != 30 {
		t.Fatalf("expected user layer to win over tenant layer, got %v", merged.FreeTierBonus)
	}
}
