// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

/*
Package metrics provides Prometheus-based instrumentation for the gateway's
HTTP frontend, upstream provider calls, fallback orchestrator, dedup layer,
health store and quota tracker.

# Overview

Collector registers every metric through promauto at construction, so callers
never manage a Registry by hand. Metrics are namespaced and label-grouped for
Grafana-style dashboards and alerting.

# Core type

  - Collector: holds the Counter/Histogram/Gauge vectors, grouped by the
    domain they instrument.

# Coverage

  - HTTP: request count, duration, request/response body size, grouped by
    method/path with status bucketed into 2xx/3xx/4xx/5xx.
  - Upstream: request count, duration, token usage (prompt/completion) and
    cost, grouped by provider/model.
  - Fallback: attempts per tier/provider/outcome, and tier-exhausted counts.
  - Dedup: hit/miss counts by endpoint kind.
  - Health: state-transition counts and a cooldown-active gauge, keyed by
    provider/model.
  - Quota: rejection counts keyed by provider/model.
*/
package metrics
