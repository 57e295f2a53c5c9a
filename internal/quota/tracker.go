// Package quota implements C4: per-provider sliding-window RPM/TPM
// counters and the CheckQuota predicate. CheckQuota is fail-open on store
// errors — a quota backend outage must never itself take a provider out of
// rotation.
package quota

// Caps is the configured ceiling for a provider key. A zero field means
// "no cap" for that dimension.
type Caps struct {
	RPM int
	TPM int
}

// Tracker is the C4 contract.
type Tracker interface {
	// CheckQuota reports whether key currently has headroom under caps. It
	// is best-effort: a backend error returns true (fail-open).
	CheckQuota(key string, caps Caps) bool
	// RecordUsage adds inputTokens+outputTokens to key's token counter and
	// increments its request counter by one. Called after the adapter
	// reports usage (post-response, or on stream completion).
	RecordUsage(key string, inputTokens, outputTokens int)
	// Remaining returns an estimate in [0,100] of quota headroom for key
	// under caps, used by the score calculator's quota factor.
	Remaining(key string, caps Caps) int
	// RequestsInWindow returns the number of requests recorded for key in
	// the current window, used by the score calculator's safety factor.
	RequestsInWindow(key string) int
}
