package fallback

import (
	"context"
	"testing"

	"github.com/relaygate/gateway/internal/costview"
	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/health"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/quota"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/resolver"
	"github.com/relaygate/gateway/internal/router"
	"github.com/relaygate/gateway/internal/scoring"
)

func sampleSnapshot() *registry.Snapshot {
	return registry.NewSnapshot(
		[]registry.CanonicalModel{{ID: "deepseek-chat"}},
		[]registry.ProviderDefinition{
			{Key: "primary", Enabled: true, Tier: 1, Free: false},
			{Key: "backup", Enabled: true, Tier: 2, Free: false},
		},
		[]registry.ProviderModelBinding{
			{CanonicalID: "deepseek-chat", ProviderKey: "primary", Available: true},
			{CanonicalID: "deepseek-chat", ProviderKey: "backup", Available: true},
		},
		nil,
	)
}

func newTestOrchestrator() (Orchestrator, health.Store) {
	reg := registry.New(sampleSnapshot())
	res := resolver.New(reg)
	h := health.NewMemory()
	q := quota.NewMemory()
	cv := costview.New(reg)
	rt := router.New(reg, res, h, q, cv, func(string) quota.Caps { return quota.Caps{RPM: 100, TPM: 100000} })
	return New(rt, h, q, cv, scoring.Default(), nil), h
}

func TestExecuteSucceedsOnFirstHealthyCandidate(t *testing.T) {
	o, _ := newTestOrchestrator()
	out := o.Execute(context.Background(), "deepseek-chat", nil, "", "", func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error) {
		return &provider.Result{Provider: cand.ProviderKey}, nil, nil
	})
	if out.Err != nil {
		t.Fatalf("expected success, got %v", out.Err)
	}
	if out.Result.Provider != "primary" {
		t.Fatalf("expected primary to win since it's tier 1, got %s", out.Result.Provider)
	}
}

func TestExecuteFallsThroughToNextCandidateOnTransientError(t *testing.T) {
	o, _ := newTestOrchestrator()
	out := o.Execute(context.Background(), "deepseek-chat", nil, "", "", func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error) {
		if cand.ProviderKey == "primary" {
			return nil, nil, gwerrors.New(gwerrors.Transient, "upstream hiccup")
		}
		return &provider.Result{Provider: cand.ProviderKey}, nil, nil
	})
	if out.Err != nil {
		t.Fatalf("expected eventual success, got %v", out.Err)
	}
	if out.Result.Provider != "backup" {
		t.Fatalf("expected fallback to backup, got %s", out.Result.Provider)
	}
}

func TestExecuteStopsImmediatelyOnTerminalError(t *testing.T) {
	o, _ := newTestOrchestrator()
	calls := map[string]int{}
	out := o.Execute(context.Background(), "deepseek-chat", nil, "", "", func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error) {
		calls[cand.ProviderKey]++
		return nil, nil, gwerrors.New(gwerrors.InvalidRequest, "bad request")
	})
	if out.Err == nil {
		t.Fatal("expected terminal failure to propagate")
	}
	if calls["backup"] != 0 {
		t.Fatal("expected terminal error to stop the search before trying backup")
	}
}

func TestExecuteExhaustsAllTiersAndReturnsUpstreamUnavailable(t *testing.T) {
	o, _ := newTestOrchestrator()
	out := o.Execute(context.Background(), "deepseek-chat", nil, "", "", func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error) {
		return nil, nil, gwerrors.New(gwerrors.RateLimited, "rate limited")
	})
	if gwerrors.CodeOf(out.Err) != gwerrors.UpstreamUnavailable {
		t.Fatalf("expected UpstreamUnavailable after exhausting all candidates, got %v", out.Err)
	}
	if len(out.Attempts) == 0 {
		t.Fatal("expected per-attempt reasons to be recorded")
	}
}

func TestExecutePreferredProviderTriedFirst(t *testing.T) {
	o, _ := newTestOrchestrator()
	out := o.Execute(context.Background(), "deepseek-chat", nil, "", "backup", func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error) {
		return &provider.Result{Provider: cand.ProviderKey}, nil, nil
	})
	if out.Result.Provider != "backup" {
		t.Fatalf("expected preferred provider to be tried first, got %s", out.Result.Provider)
	}
}
