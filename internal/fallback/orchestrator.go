// Package fallback implements C9: the four-tier fallback orchestrator that
// drives a provider adapter across an ordered candidate list, attributing
// every failure to health/quota and giving up only once every tier is
// exhausted.
package fallback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/costview"
	"github.com/relaygate/gateway/internal/fallback/circuitbreaker"
	"github.com/relaygate/gateway/internal/fallback/retry"
	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/health"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/quota"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/router"
	"github.com/relaygate/gateway/internal/scoring"
)

// rateLimitCooldown is the base cooldown for RateLimited/QuotaExhausted
// outcomes — short, since these self-heal quickly.
const rateLimitCooldown = 30 * time.Second

// transientCooldown is the base cooldown for Transient/UpstreamUnavailable
// outcomes — escalates via health.EscalatedCooldown on repeat failures.
const transientCooldown = 30 * time.Second

// Run is the caller-supplied invocation: attempt canonicalID on the given
// candidate and return its outcome.
type Run func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error)

// Attempt records one candidate's outcome, surfaced to the caller for
// logging/audit regardless of whether the overall request ultimately
// succeeds.
type Attempt struct {
	ProviderKey string
	CanonicalID string
	Tier        string
	Err         *gwerrors.Error
	Duration    time.Duration
}

// Outcome is the orchestrator's result: either a successful Result/stream,
// or exhaustion with every attempt's reason attached.
type Outcome struct {
	Result   *provider.Result
	Stream   <-chan provider.StreamChunk
	Attempts []Attempt
	Err      error
}

// Orchestrator is the C9 contract.
type Orchestrator interface {
	Execute(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID, preferredProviderKey string, run Run) Outcome
}

type orchestrator struct {
	rt      router.Router
	health  health.Store
	quota   quota.Tracker
	cost    costview.View
	policy  scoring.Policy
	logger  *zap.Logger
	breaker map[string]*circuitbreaker.Breaker
	retryP  retry.Policy
	audit   audit.Logger
}

// New builds an Orchestrator over a Router already composed with the
// registry, health store, quota tracker and cost view (C1/C3/C4/C5). cv is
// the same costview.View the router enriches candidates from; the
// orchestrator folds successful-invocation latency samples back into it.
// Attempts are not audit-logged; use NewWithAudit for that.
func New(rt router.Router, h health.Store, q quota.Tracker, cv costview.View, policy scoring.Policy, logger *zap.Logger) Orchestrator {
	return NewWithAudit(rt, h, q, cv, policy, logger, audit.Nop{})
}

// NewWithAudit is New plus a durable audit.Logger: every recorded Attempt
// (success or failure) is also appended to auditLogger, independent of the
// Outcome returned to the caller.
func NewWithAudit(rt router.Router, h health.Store, q quota.Tracker, cv costview.View, policy scoring.Policy, logger *zap.Logger, auditLogger audit.Logger) Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &orchestrator{
		rt:      rt,
		health:  h,
		cost:    cv,
		quota:   q,
		policy:  policy,
		logger:  logger,
		breaker: make(map[string]*circuitbreaker.Breaker),
		retryP:  retry.DefaultPolicy(),
		audit:   auditLogger,
	}
}

func (o *orchestrator) breakerFor(key string) *circuitbreaker.Breaker {
	if b, ok := o.breaker[key]; ok {
		return b
	}
	b := circuitbreaker.New(circuitbreaker.DefaultConfig(), o.logger)
	o.breaker[key] = b
	return b
}

// partitionTiers splits an ordered candidate list into T1 preferred, T2
// free, T3 paid. T4 (emergency) is fetched separately since it requires a
// quota-ignoring pass from the router.
func partitionTiers(candidates []router.EnrichedCandidate, preferredKey string) (t1, t2, t3 []router.EnrichedCandidate) {
	seen := make(map[string]bool, len(candidates))
	if preferredKey != "" {
		for _, c := range candidates {
			if c.ProviderKey == preferredKey {
				t1 = append(t1, c)
				seen[c.ProviderKey] = true
				break
			}
		}
	}
	for _, c := range candidates {
		if seen[c.ProviderKey] {
			continue
		}
		if c.Provider.Free {
			t2 = append(t2, c)
		} else {
			t3 = append(t3, c)
		}
	}
	return
}

// Execute runs the candidate list tier by tier. Within a tier, candidates
// are tried in the router's scored order. A Canceled outcome stops the
// whole search immediately; a terminal outcome (AuthFailed, InvalidRequest,
// ContextLengthExceeded, NotFound) stops the search immediately too since no
// other candidate would fare differently against the same request. All
// other failures attribute to health/quota and the search continues.
func (o *orchestrator) Execute(ctx context.Context, modelID string, capabilities registry.CapabilitySet, tenantID, preferredProviderKey string, run Run) Outcome {
	candidates, err := o.rt.Candidates(ctx, modelID, capabilities, tenantID, o.policy)
	if err != nil {
		return Outcome{Err: err}
	}

	// traceID correlates every attempt in this search across logs and the
	// audit sink; it never leaves the process (not returned to the caller).
	traceID := uuid.NewString()

	t1, t2, t3 := partitionTiers(candidates, preferredProviderKey)
	attempts := make([]Attempt, 0, len(candidates)+1)

	for _, tier := range []struct {
		name  string
		cands []router.EnrichedCandidate
	}{
		{"preferred", t1},
		{"free", t2},
		{"paid", t3},
	} {
		if out, ok := o.runTier(ctx, traceID, tenantID, tier.name, tier.cands, run, &attempts); ok {
			return out
		}
	}

	emergency, err := o.rt.EmergencyCandidates(ctx, modelID, capabilities, tenantID, o.policy)
	if err == nil {
		if out, ok := o.runTier(ctx, traceID, tenantID, "emergency", emergency, run, &attempts); ok {
			return out
		}
	}

	return Outcome{
		Attempts: attempts,
		Err:      gwerrors.New(gwerrors.UpstreamUnavailable, "all candidate providers exhausted").WithHTTPStatus(503),
	}
}

// runTier tries every candidate in order, returning (outcome, true) the
// moment one succeeds or the search must stop outright (Canceled/terminal).
func (o *orchestrator) runTier(ctx context.Context, traceID, tenantID, tierName string, cands []router.EnrichedCandidate, run Run, attempts *[]Attempt) (Outcome, bool) {
	for _, cand := range cands {
		key := router.QuotaKey(cand.ProviderKey, cand.CanonicalID)

		// Re-check health/quota immediately before invocation: state may
		// have changed since Candidates() was enumerated. The emergency
		// tier ignores quota by construction (EmergencyCandidates already
		// skipped the headroom check), so it's exempt here too.
		if !o.health.IsHealthy(key) {
			continue
		}
		if tierName != "emergency" && !o.quota.CheckQuota(key, o.rt.CapsFor(cand)) {
			continue
		}

		var (
			result *provider.Result
			stream <-chan provider.StreamChunk
			callErr error
		)

		start := time.Now()
		breaker := o.breakerFor(key)
		for attempt := 1; attempt <= o.retryP.MaxAttempts; attempt++ {
			callErr = breaker.Call(ctx, func(cctx context.Context) error {
				var e error
				result, stream, e = run(cctx, cand)
				return e
			})
			if callErr == nil {
				break
			}
			if gwerrors.CodeOf(callErr) != gwerrors.Transient || attempt == o.retryP.MaxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				callErr = gwerrors.New(gwerrors.Canceled, "request canceled during retry").WithCause(ctx.Err())
			case <-time.After(o.retryP.Delay(attempt)):
			}
			if callErr != nil && gwerrors.CodeOf(callErr) == gwerrors.Canceled {
				break
			}
		}
		duration := time.Since(start)

		if callErr == nil {
			o.health.MarkSuccess(key)
			o.cost.Observe(cand.ProviderKey, float64(duration.Milliseconds()))
			// Non-streaming usage is known synchronously; streaming usage
			// only arrives on the terminal chunk, so the gateway frontend
			// (C11) is responsible for calling RecordUsage once a stream
			// drains.
			if result != nil {
				o.quota.RecordUsage(key, result.Usage.PromptTokens, result.Usage.CompletionTokens)
			}
			*attempts = append(*attempts, Attempt{ProviderKey: cand.ProviderKey, CanonicalID: cand.CanonicalID, Tier: tierName, Duration: duration})
			o.audit.Log(ctx, audit.Entry{
				TraceID: traceID, TenantID: tenantID, ProviderKey: cand.ProviderKey, CanonicalID: cand.CanonicalID,
				Tier: tierName, DurationMS: duration.Milliseconds(), Success: true, RecordedAt: time.Now(),
			})
			return Outcome{Result: result, Stream: stream, Attempts: *attempts}, true
		}

		gwErr, _ := gwerrors.As(callErr)
		if gwErr == nil {
			gwErr = gwerrors.New(gwerrors.InternalError, callErr.Error())
		}
		*attempts = append(*attempts, Attempt{ProviderKey: cand.ProviderKey, CanonicalID: cand.CanonicalID, Tier: tierName, Err: gwErr, Duration: duration})
		o.audit.Log(ctx, audit.Entry{
			TraceID: traceID, TenantID: tenantID, ProviderKey: cand.ProviderKey, CanonicalID: cand.CanonicalID,
			Tier: tierName, ErrCode: string(gwErr.Code), ErrMessage: gwErr.Message,
			DurationMS: duration.Milliseconds(), Success: false, RecordedAt: time.Now(),
		})

		switch {
		case gwErr.Code == gwerrors.Canceled:
			return Outcome{Attempts: *attempts, Err: gwErr}, true
		case gwErr.Code.IsTerminal():
			return Outcome{Attempts: *attempts, Err: gwErr}, true
		case gwErr.Code == gwerrors.RateLimited || gwErr.Code == gwerrors.QuotaExhausted:
			o.health.MarkFailure(key, rateLimitCooldown, gwErr.Message)
		default: // Transient, UpstreamUnavailable
			o.health.MarkFailure(key, transientCooldown, gwErr.Message)
		}
	}
	return Outcome{}, false
}
