package scoring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_MergeIsIdempotent: Property: reapplying the same override
// layer a second time never changes the result — Merge(Merge(base, o), o)
// equals Merge(base, o), since a later layer always simply replaces the
// fields it sets rather than accumulating with the prior value.
func TestProperty_MergeIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("merging the same override twice equals merging it once", prop.ForAll(
		func(wq, wquo, ws, wl, bonus, threshold float64, preferFree bool) bool {
			base := Default()
			override := Override{
				WeightQuality:     &wq,
				WeightQuota:       &wquo,
				WeightSafety:      &ws,
				WeightLatency:     &wl,
				PreferFree:        &preferFree,
				FreeTierBonus:     &bonus,
				MinScoreThreshold: &threshold,
			}

			once := Merge(base, override)
			twice := Merge(base, override, override)
			return once == twice
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 10),
		gen.Float64Range(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestProperty_MergeLaterLayerWins: Property: a tenant-then-user override
// sequence always reflects the last non-nil field set, never an earlier
// layer's value, regardless of how many layers are chained.
func TestProperty_MergeLaterLayerWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("the last override in the chain determines the final weight", prop.ForAll(
		func(tenantWeight, userWeight float64) bool {
			base := Default()
			tenant := Override{WeightQuality: &tenantWeight}
			user := Override{WeightQuality: &userWeight}

			merged := Merge(base, tenant, user)
			return merged.WeightQuality == userWeight
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
