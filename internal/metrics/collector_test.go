package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmRequestDuration)
	assert.NotNil(t, collector.llmTokensUsed)
	assert.NotNil(t, collector.llmCost)
	assert.NotNil(t, collector.fallbackAttemptsTotal)
	assert.NotNil(t, collector.dedupHits)
	assert.NotNil(t, collector.healthStateTransitions)
	assert.NotNil(t, collector.quotaRejectionsTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordHTTPRequest("GET", "/v1/chat/completions", 200, 100*time.Millisecond, 1024, 2048)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	collector.RecordHTTPRequest("GET", "/v1/chat/completions", 200, 50*time.Millisecond, 512, 1024)

	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordLLMRequest(
		"deepseek",
		"deepseek-chat",
		"success",
		500*time.Millisecond,
		100, // prompt tokens
		50,  // completion tokens
		0.01,
	)

	count := testutil.CollectAndCount(collector.llmRequestsTotal)
	assert.Greater(t, count, 0)

	tokensCount := testutil.CollectAndCount(collector.llmTokensUsed)
	assert.Greater(t, tokensCount, 0)

	costCount := testutil.CollectAndCount(collector.llmCost)
	assert.Greater(t, costCount, 0)
}

func TestCollector_RecordFallbackAttempt(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordFallbackAttempt("tier1", "deepseek", "success")
	collector.RecordTierExhausted("tier1")

	count := testutil.CollectAndCount(collector.fallbackAttemptsTotal)
	assert.Greater(t, count, 0)

	exhaustedCount := testutil.CollectAndCount(collector.fallbackTierOutcome)
	assert.Greater(t, exhaustedCount, 0)
}

func TestCollector_RecordDedupOutcome(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordDedupHit("chat_completions")
	collector.RecordDedupMiss("chat_completions")

	hitCount := testutil.CollectAndCount(collector.dedupHits)
	assert.Greater(t, hitCount, 0)

	missCount := testutil.CollectAndCount(collector.dedupMisses)
	assert.Greater(t, missCount, 0)
}

func TestCollector_RecordHealthTransition(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordHealthTransition("deepseek:deepseek-chat", "healthy_to_cooldown")
	collector.SetHealthCooldownActive("deepseek:deepseek-chat", true)

	count := testutil.CollectAndCount(collector.healthStateTransitions)
	assert.Greater(t, count, 0)

	assert.InDelta(t, 1.0, testutil.ToFloat64(
		collector.healthCooldownActive.WithLabelValues("deepseek:deepseek-chat")), 0.001)

	collector.SetHealthCooldownActive("deepseek:deepseek-chat", false)
	assert.InDelta(t, 0.0, testutil.ToFloat64(
		collector.healthCooldownActive.WithLabelValues("deepseek:deepseek-chat")), 0.001)
}

func TestCollector_RecordQuotaRejection(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordQuotaRejection("deepseek:deepseek-chat")

	count := testutil.CollectAndCount(collector.quotaRejectionsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			collector.RecordHTTPRequest("GET", "/v1/chat/completions", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordLLMRequest("deepseek", "deepseek-chat", "success", 500*time.Millisecond, 100, 50, 0.01)
			collector.RecordDedupHit("chat_completions")
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	httpCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, httpCount, 0)

	llmCount := testutil.CollectAndCount(collector.llmRequestsTotal)
	assert.Greater(t, llmCount, 0)

	dedupCount := testutil.CollectAndCount(collector.dedupHits)
	assert.Greater(t, dedupCount, 0)
}

func TestCollector_MetricsRegistration(t *testing.T) {
	logger := zap.NewNop()

	registry := prometheus.NewRegistry()

	collector := NewCollector(nextTestNamespace(), logger)

	registry.MustRegister(collector.httpRequestsTotal)
	registry.MustRegister(collector.httpRequestDuration)

	collector.RecordHTTPRequest("GET", "/v1/chat/completions", 200, 100*time.Millisecond, 0, 0)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)
}
