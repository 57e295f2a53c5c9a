package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relaygate/gateway/internal/health"
	"github.com/relaygate/gateway/internal/registry"
)

// probeTimeout bounds a single provider reachability check so one hung
// upstream never delays the others or the listener opening.
const probeTimeout = 3 * time.Second

// probeProviders fans out a bounded-concurrency reachability check across
// every enabled provider in snap and seeds healthStore from the outcome,
// so the router's first request doesn't have to discover a dead provider
// the hard way. A probe failure only marks the provider's cooldown; it
// never aborts startup, since a provider being down at boot is an
// operational fact, not a wiring error.
func probeProviders(ctx context.Context, snap *registry.Snapshot, healthStore health.Store, client *http.Client, logger *zap.Logger) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, def := range snap.Providers {
		def := def
		if !def.Enabled || def.BaseEndpoint == "" {
			continue
		}
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, probeTimeout)
			defer cancel()

			if err := probeOne(probeCtx, client, def.BaseEndpoint); err != nil {
				healthStore.MarkFailure(def.Key, 30*time.Second, err.Error())
				logger.Warn("startup probe failed", zap.String("provider", def.Key), zap.Error(err))
				return nil
			}
			healthStore.MarkSuccess(def.Key)
			return nil
		})
	}

	// Errors are swallowed inside each goroutine (see above), so every
	// goroutine returns nil and Wait always returns nil; it only blocks
	// until all probes have finished.
	_ = g.Wait()
}

// probeOne issues a lightweight HEAD request against the endpoint URL and
// treats any response (even a 404 or 401) as proof of reachability — the
// probe checks that something is listening, not that the request would
// succeed.
func probeOne(ctx context.Context, client *http.Client, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe unreachable: %w", err)
	}
	defer resp.Body.Close()
	return nil
}
