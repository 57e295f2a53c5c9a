// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config provides relaygate's configuration management.

# Overview

config owns the gateway's static configuration: the HTTP/metrics server
settings, the Redis connection used by the redis-backed store variants,
the provider/canonical-model/alias registry enumeration, the scoring
policy (with its tenant and user override tables), request timeouts,
dedup settings, logging and telemetry. Config is assembled in priority
order: defaults -> YAML file -> environment variables.

# Core types

  - Config: the top-level aggregate (Server, Redis, Providers,
    CanonicalModels, Aliases, Policy, Timeouts, Dedup, Log, Telemetry,
    Audit)
  - Loader: builder-style loader; chains a config path, an env prefix
    and custom validators before Load()
  - FileWatcher: polling file watcher with debounce, used by cmd/relaygate
    to detect edits to the YAML file on disk and trigger a registry
    snapshot rebuild without a restart

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("RELAYGATE").
		Load()
*/
package config
