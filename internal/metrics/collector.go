// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector holds every Prometheus metric the gateway records.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Upstream (provider) metrics
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec
	llmCost            *prometheus.CounterVec

	// Fallback orchestrator metrics
	fallbackAttemptsTotal *prometheus.CounterVec
	fallbackTierOutcome   *prometheus.CounterVec

	// Dedup metrics
	dedupHits   *prometheus.CounterVec
	dedupMisses *prometheus.CounterVec

	// Health store metrics
	healthStateTransitions *prometheus.CounterVec
	healthCooldownActive   *prometheus.GaugeVec

	// Quota metrics
	quotaRejectionsTotal *prometheus.CounterVec

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector builds and registers every metric under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_tokens_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.llmCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_cost_total",
			Help:      "Total upstream cost in USD",
		},
		[]string{"provider", "model"},
	)

	c.fallbackAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_attempts_total",
			Help:      "Total number of candidate attempts made by the fallback orchestrator",
		},
		[]string{"tier", "provider", "outcome"}, // outcome: success, retryable, terminal
	)

	c.fallbackTierOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_tier_exhausted_total",
			Help:      "Total number of times a fallback tier was exhausted without success",
		},
		[]string{"tier"},
	)

	c.dedupHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_hits_total",
			Help:      "Total number of requests that joined an in-flight duplicate",
		},
		[]string{"endpoint_kind"},
	)

	c.dedupMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_misses_total",
			Help:      "Total number of requests that became the owner of a new fingerprint",
		},
		[]string{"endpoint_kind"},
	)

	c.healthStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_state_transitions_total",
			Help:      "Total number of health-store state transitions",
		},
		[]string{"provider_model_key", "transition"}, // transition: healthy_to_cooldown, cooldown_to_healthy
	)

	c.healthCooldownActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_cooldown_active",
			Help:      "Whether a provider/model key is currently in cooldown (1) or healthy (0)",
		},
		[]string{"provider_model_key"},
	)

	c.quotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Total number of candidates skipped for exceeding their RPM/TPM cap",
		},
		[]string{"provider_model_key"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest records one completed HTTP request/response cycle.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔌 Upstream 指标记录
// =============================================================================

// RecordLLMRequest records one upstream provider invocation.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int, cost float64) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	c.llmCost.WithLabelValues(provider, model).Add(cost)
}

// =============================================================================
// 🔁 Fallback 指标记录
// =============================================================================

// RecordFallbackAttempt records one candidate attempt within a tier.
func (c *Collector) RecordFallbackAttempt(tier, provider, outcome string) {
	c.fallbackAttemptsTotal.WithLabelValues(tier, provider, outcome).Inc()
}

// RecordTierExhausted records a tier that ran out of candidates without a success.
func (c *Collector) RecordTierExhausted(tier string) {
	c.fallbackTierOutcome.WithLabelValues(tier).Inc()
}

// =============================================================================
// 🧩 Dedup 指标记录
// =============================================================================

// RecordDedupHit records a request that joined an already in-flight owner.
func (c *Collector) RecordDedupHit(endpointKind string) {
	c.dedupHits.WithLabelValues(endpointKind).Inc()
}

// RecordDedupMiss records a request that became the fingerprint's owner.
func (c *Collector) RecordDedupMiss(endpointKind string) {
	c.dedupMisses.WithLabelValues(endpointKind).Inc()
}

// =============================================================================
// 🏥 Health 指标记录
// =============================================================================

// RecordHealthTransition records a health-store state change for key.
func (c *Collector) RecordHealthTransition(key, transition string) {
	c.healthStateTransitions.WithLabelValues(key, transition).Inc()
}

// SetHealthCooldownActive sets the current cooldown gauge for key.
func (c *Collector) SetHealthCooldownActive(key string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	c.healthCooldownActive.WithLabelValues(key).Set(v)
}

// =============================================================================
// 📉 Quota 指标记录
// =============================================================================

// RecordQuotaRejection records a candidate skipped for exceeding its cap.
func (c *Collector) RecordQuotaRejection(key string) {
	c.quotaRejectionsTotal.WithLabelValues(key).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode buckets an HTTP status into its class string.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
