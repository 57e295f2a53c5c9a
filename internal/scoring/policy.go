// Package scoring implements C7: the weighted score calculator and its
// layered policy (global -> tenant -> user), adapted from the fallback
// policy manager's trigger-matching layering into a weight-merging one.
package scoring

// Policy holds the weights and thresholds the score calculator reads. Zero
// values are never valid weights on their own; Default() seeds the baseline
// every layer merges onto.
type Policy struct {
	WeightQuality float64
	WeightQuota   float64
	WeightSafety  float64
	WeightLatency float64

	PreferFree        bool
	FreeTierBonus     float64
	MinScoreThreshold float64
}

// Default returns the baseline global policy. Cost weight is fixed at 0.1
// system-wide and is not part of Policy — the score calculator applies it
// directly.
func Default() Policy {
	return Policy{
		WeightQuality:     0.35,
		WeightQuota:       0.25,
		WeightSafety:      0.2,
		WeightLatency:     0.1,
		PreferFree:        true,
		FreeTierBonus:     50,
		MinScoreThreshold: 0,
	}
}

// Override carries a sparse set of field overrides for one layer (tenant or
// user); nil fields mean "inherit from the layer below".
type Override struct {
	WeightQuality     *float64
	WeightQuota       *float64
	WeightSafety      *float64
	WeightLatency     *float64
	PreferFree        *bool
	FreeTierBonus     *float64
	MinScoreThreshold *float64
}

// Merge applies overrides in order (global baseline, then tenant, then
// user), each one only replacing the fields it sets. Later layers win.
func Merge(base Policy, overrides ...Override) Policy {
	merged := base
	for _, o := range overrides {
		if o.WeightQuality != nil {
			merged.WeightQuality = *o.WeightQuality
		}
		if o.WeightQuota != nil {
			merged.WeightQuota = *o.WeightQuota
		}
		if o.WeightSafety != nil {
			merged.WeightSafety = *o.WeightSafety
		}
		if o.WeightLatency != nil {
			merged.WeightLatency = *o.WeightLatency
		}
		if o.PreferFree != nil {
			merged.PreferFree = *o.PreferFree
		}
		if o.FreeTierBonus != nil {
			merged.FreeTierBonus = *o.FreeTierBonus
		}
		if o.MinScoreThreshold != nil {
			merged.MinScoreThreshold = *o.MinScoreThreshold
		}
	}
	return merged
}
