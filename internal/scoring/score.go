package scoring

// costWeight is fixed system-wide, per spec — never policy-controlled.
const costWeight = 0.1

// Candidate is the enriched, scorable view of one (canonicalId, providerKey)
// pairing the router assembles from C1/C3/C4/C5 before scoring.
type Candidate struct {
	CanonicalID string
	ProviderKey string
	Tier        int

	// Quality is a static per-model-tier quality factor in [0,1].
	Quality float64
	// QuotaRemaining is the fraction of quota headroom in [0,1] (C4's
	// Remaining()/100).
	QuotaRemaining float64
	// Safety decreases as recent request volume approaches the ceiling,
	// in [0,1]; 1 means no recent traffic pressure.
	Safety float64
	// LatencyMs is the current EMA from C5, or a conservative default if
	// no sample exists yet.
	LatencyMs float64
	// LatencyCeilingMs normalizes LatencyMs into [0,1]; latencies at or
	// above the ceiling score 0 on the latency factor.
	LatencyCeilingMs float64

	InputPrice  float64
	OutputPrice float64
	FreeTier    bool
}

// clamp01 keeps a factor within the contract each term of the formula
// requires.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (c Candidate) latencyFactor() float64 {
	if c.LatencyCeilingMs <= 0 {
		return 1
	}
	return clamp01(1 - c.LatencyMs/c.LatencyCeilingMs)
}

func (c Candidate) costFactor(maxPrice float64) float64 {
	if c.FreeTier {
		return 1
	}
	if maxPrice <= 0 {
		return 1
	}
	price := c.InputPrice + c.OutputPrice
	return clamp01(1 - price/maxPrice)
}

// Score applies the weighted formula from the design:
//
//	score = 100 * (Wq*qual + Wr*quota + Ws*safety + Wl*lat + Wc*cost)
//
// plus a flat freeTierBonus when the policy prefers free candidates and this
// one is free. maxPrice normalizes the cost factor across the candidate set
// being scored together; pass the highest combined price among them.
func Score(c Candidate, policy Policy, maxPrice float64) float64 {
	qual := clamp01(c.Quality)
	quota := clamp01(c.QuotaRemaining)
	safety := clamp01(c.Safety)
	lat := c.latencyFactor()
	cost := c.costFactor(maxPrice)

	score := 100 * (policy.WeightQuality*qual +
		policy.WeightQuota*quota +
		policy.WeightSafety*safety +
		policy.WeightLatency*lat +
		costWeight*cost)

	if policy.PreferFree && c.FreeTier {
		score += policy.FreeTierBonus
	}
	return score
}

// MeetsThreshold reports whether score clears the policy's minimum.
func MeetsThreshold(score float64, policy Policy) bool {
	return score >= policy.MinScoreThreshold
}
