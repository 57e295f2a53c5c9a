// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Command relaygate runs the OpenAI-compatible inference gateway.

# Usage

	relaygate serve                       # start the gateway
	relaygate serve --config config.yaml  # use a specific config file
	relaygate version                     # print version info
	relaygate health                      # poll /health on a running instance

# Process

runServe loads and validates config, initializes the zap logger and OTel
providers, builds the full component graph (registry, resolver, cost view,
health/quota/dedup stores, router, fallback orchestrator, provider adapter
registry) and wraps it in a gateway.Gateway, then starts the HTTP and
metrics listeners behind the middleware chain in middleware.go.

# Routes

  - /health, /healthz, /ready, /readyz, /version — process liveness/readiness
  - /v1/chat/completions, /v1/completions, /v1/responses, /v1/embeddings,
    /v1/models, /v1/models/{id} — the OpenAI-compatible surface, mounted by
    gateway.Gateway.RegisterRoutes
  - /metrics — Prometheus scrape endpoint, served on a separate port

# Middleware chain

Recovery, RequestID, RequestLogger, MetricsMiddleware, OTelTracing,
SecurityHeaders, CORS, RateLimiter (IP-keyed, pre-auth). Per-principal
authentication is not a chain middleware: it happens inside
gateway.Gateway.RegisterRoutes, one AuthExtractor per route, so routes that
don't need a Principal (none currently) could opt out without touching this
chain.
*/
package main
