// =============================================================================
// 📦 relaygate 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig returns the baseline configuration: an empty provider/model
// registry (nothing routes until an operator supplies a YAML file) plus
// sane ambient defaults for everything else.
func DefaultConfig() *Config {
	return &Config{
		Server:          DefaultServerConfig(),
		Redis:           DefaultRedisConfig(),
		Providers:       ProvidersConfig{},
		CanonicalModels: CanonicalModelsConfig{},
		Aliases:         AliasesConfig{},
		Policy:          DefaultPolicyConfig(),
		Timeouts:        DefaultTimeoutsConfig(),
		Dedup:           DefaultDedupConfig(),
		Audit:           DefaultAuditConfig(),
		Log:             DefaultLogConfig(),
		Telemetry:       DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultPolicyConfig returns the default score-calculator policy,
// matching scoring.Default().
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Global: PolicyWeights{
			WeightQuality:     0.35,
			WeightQuota:       0.25,
			WeightSafety:      0.2,
			WeightLatency:     0.1,
			PreferFree:        true,
			FreeTierBonus:     50,
			MinScoreThreshold: 0,
		},
	}
}

// DefaultTimeoutsConfig returns the default request-scoped timeouts.
func DefaultTimeoutsConfig() TimeoutsConfig {
	return TimeoutsConfig{
		NonStreamRequest: 10 * time.Minute,
		StreamIdle:       60 * time.Second,
		UpstreamDial:     30 * time.Second,
	}
}

// DefaultDedupConfig returns the default in-flight dedup configuration.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Enabled: true,
		Backend: "memory",
	}
}

// DefaultAuditConfig returns the default audit sink configuration: empty
// MongoURI disables the durable sink, leaving the orchestrator's no-op
// audit.Logger in place.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Database:   "relaygate",
		Collection: "fallback_attempts",
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "relaygate",
		SampleRate:   0.1,
	}
}
