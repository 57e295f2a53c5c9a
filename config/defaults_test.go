package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, PolicyConfig{}, cfg.Policy)
	assert.NotEqual(t, TimeoutsConfig{}, cfg.Timeouts)
	assert.NotEqual(t, DedupConfig{}, cfg.Dedup)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)

	// The registry enumeration starts empty; an operator supplies it via YAML.
	assert.Empty(t, cfg.Providers.Entries)
	assert.Empty(t, cfg.CanonicalModels.Entries)
	assert.Empty(t, cfg.Aliases.Entries)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.InDelta(t, 100, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConns)
}

func TestDefaultPolicyConfig(t *testing.T) {
	cfg := DefaultPolicyConfig()
	assert.InDelta(t, 0.35, cfg.Global.WeightQuality, 0.001)
	assert.InDelta(t, 0.25, cfg.Global.WeightQuota, 0.001)
	assert.InDelta(t, 0.2, cfg.Global.WeightSafety, 0.001)
	assert.InDelta(t, 0.1, cfg.Global.WeightLatency, 0.001)
	assert.True(t, cfg.Global.PreferFree)
	assert.InDelta(t, 50, cfg.Global.FreeTierBonus, 0.001)
	assert.Empty(t, cfg.TenantOverrides)
	assert.Empty(t, cfg.UserOverrides)
}

func TestDefaultTimeoutsConfig(t *testing.T) {
	cfg := DefaultTimeoutsConfig()
	assert.Equal(t, 10*time.Minute, cfg.NonStreamRequest)
	assert.Equal(t, 60*time.Second, cfg.StreamIdle)
	assert.Equal(t, 30*time.Second, cfg.UpstreamDial)
}

func TestDefaultDedupConfig(t *testing.T) {
	cfg := DefaultDedupConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "memory", cfg.Backend)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "relaygate", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
