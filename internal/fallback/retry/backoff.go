// Package retry provides the exponential-backoff-with-jitter delay
// calculation the fallback orchestrator uses for a single bounded retry of
// the same candidate on a Transient error, before giving up on it and
// moving to the next candidate in its tier.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy configures the backoff curve.
type Policy struct {
	MaxAttempts  int // total attempts including the first; 1 means no retry
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultPolicy allows one extra attempt after the first, which is the
// orchestrator's bounded same-candidate retry for Transient errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  2,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Delay returns the wait before attempt N (1-indexed; Delay(1) is the wait
// before the second attempt, since the first runs immediately).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		jitter := d * 0.25
		d += (rand.Float64()*2 - 1) * jitter
	}
	if d < float64(p.InitialDelay) {
		d = float64(p.InitialDelay)
	}
	return time.Duration(d)
}
