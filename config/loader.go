// =============================================================================
// 📦 relaygate 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("RELAYGATE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config is relaygate's complete configuration structure.
type Config struct {
	Server ServerConfig `yaml:"server" env:"SERVER"`
	Redis  RedisConfig  `yaml:"redis" env:"REDIS"`

	Providers       ProvidersConfig       `yaml:"providers" env:"-"`
	CanonicalModels CanonicalModelsConfig `yaml:"canonicalModels" env:"-"`
	Aliases         AliasesConfig         `yaml:"aliases" env:"-"`
	Policy          PolicyConfig          `yaml:"policy" env:"POLICY"`
	Timeouts        TimeoutsConfig        `yaml:"timeouts" env:"TIMEOUTS"`
	Dedup           DedupConfig           `yaml:"dedup" env:"DEDUP"`
	Audit           AuditConfig           `yaml:"audit" env:"AUDIT"`

	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig is the HTTP server's own configuration.
type ServerConfig struct {
	HTTPPort           int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort        int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS       float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// JWTSecret signs/verifies the HS256 bearer tokens the default
	// AuthExtractor accepts. Empty disables the built-in extractor.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// RedisConfig configures the shared Redis client used by the C3/C4/C10
// redis-backed store variants.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// ProvidersConfig is the `providers.<key>.*` enumeration: one entry per
// upstream the registry knows about.
type ProvidersConfig struct {
	Entries []ProviderConfig `yaml:"entries"`
}

// ProviderConfig mirrors registry.ProviderDefinition, with the credential
// carried as an indirect reference (an env var name) rather than the secret
// itself — the credential store resolves CredentialRef into the opaque
// handle adapters receive.
type ProviderConfig struct {
	Key              string `yaml:"key"`
	Kind             string `yaml:"kind"`
	BaseEndpoint     string `yaml:"base_endpoint"`
	FallbackEndpoint string `yaml:"fallback_endpoint"`
	Tier             int    `yaml:"tier"`
	Enabled          bool   `yaml:"enabled"`
	Free             bool   `yaml:"free"`
	CredentialRef    string `yaml:"credential_ref"`
	DefaultRPM       int    `yaml:"default_rpm"`
	DefaultTPM       int    `yaml:"default_tpm"`
}

// CanonicalModelsConfig is the `canonicalModels[].*` enumeration.
type CanonicalModelsConfig struct {
	Entries []CanonicalModelConfig `yaml:"entries"`
}

// CanonicalModelConfig mirrors registry.CanonicalModel plus its provider
// bindings, so one YAML entry fully describes a model and every upstream
// that can serve it.
type CanonicalModelConfig struct {
	ID              string          `yaml:"id"`
	Family          string          `yaml:"family"`
	ContextWindow   int             `yaml:"context_window"`
	MaxOutputTokens int             `yaml:"max_output_tokens"`
	Capabilities    []string        `yaml:"capabilities"`
	ReleaseDate     string          `yaml:"release_date"`
	Bindings        []BindingConfig `yaml:"bindings"`
}

// BindingConfig mirrors registry.ProviderModelBinding.
type BindingConfig struct {
	ProviderKey         string   `yaml:"provider_key"`
	ProviderSpecificID  string   `yaml:"provider_specific_id"`
	Available           bool     `yaml:"available"`
	OverrideInputPrice  *float64 `yaml:"override_input_price"`
	OverrideOutputPrice *float64 `yaml:"override_output_price"`
	RateLimitRPM        *int     `yaml:"rate_limit_rpm"`
	RateLimitTPM        *int     `yaml:"rate_limit_tpm"`
}

// AliasesConfig is the `aliases[].*` enumeration.
type AliasesConfig struct {
	Entries []AliasConfig `yaml:"entries"`
}

// AliasConfig mirrors registry.Alias.
type AliasConfig struct {
	Scope      string   `yaml:"scope"`
	TenantID   string   `yaml:"tenant_id"`
	Name       string   `yaml:"name"`
	Candidates []string `yaml:"candidates"`
}

// PolicyConfig is the `policy.*` enumeration, including the tenant/user
// override tables the score calculator's layered Merge expects.
type PolicyConfig struct {
	Global          PolicyWeights            `yaml:"global" env:"GLOBAL"`
	TenantOverrides map[string]PolicyOverride `yaml:"tenant_overrides" env:"-"`
	UserOverrides   map[string]PolicyOverride `yaml:"user_overrides" env:"-"`
}

// PolicyWeights mirrors scoring.Policy.
type PolicyWeights struct {
	WeightQuality     float64 `yaml:"weight_quality" env:"WEIGHT_QUALITY"`
	WeightQuota       float64 `yaml:"weight_quota" env:"WEIGHT_QUOTA"`
	WeightSafety      float64 `yaml:"weight_safety" env:"WEIGHT_SAFETY"`
	WeightLatency     float64 `yaml:"weight_latency" env:"WEIGHT_LATENCY"`
	PreferFree        bool    `yaml:"prefer_free" env:"PREFER_FREE"`
	FreeTierBonus     float64 `yaml:"free_tier_bonus" env:"FREE_TIER_BONUS"`
	MinScoreThreshold float64 `yaml:"min_score_threshold" env:"MIN_SCORE_THRESHOLD"`
}

// PolicyOverride mirrors scoring.Override; nil fields inherit the layer
// below.
type PolicyOverride struct {
	WeightQuality     *float64 `yaml:"weight_quality"`
	WeightQuota       *float64 `yaml:"weight_quota"`
	WeightSafety      *float64 `yaml:"weight_safety"`
	WeightLatency     *float64 `yaml:"weight_latency"`
	PreferFree        *bool    `yaml:"prefer_free"`
	FreeTierBonus     *float64 `yaml:"free_tier_bonus"`
	MinScoreThreshold *float64 `yaml:"min_score_threshold"`
}

// TimeoutsConfig is the `timeouts.*` enumeration governing request-scoped
// deadlines the gateway frontend applies.
type TimeoutsConfig struct {
	NonStreamRequest time.Duration `yaml:"non_stream_request" env:"NON_STREAM_REQUEST"`
	StreamIdle       time.Duration `yaml:"stream_idle" env:"STREAM_IDLE"`
	UpstreamDial     time.Duration `yaml:"upstream_dial" env:"UPSTREAM_DIAL"`
}

// DedupConfig is the `dedup.*` enumeration.
type DedupConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Backend string `yaml:"backend" env:"BACKEND"` // "memory" or "redis"
}

// AuditConfig configures the optional durable audit sink (internal/audit).
// Empty URI leaves the orchestrator's audit.Logger as the no-op default.
type AuditConfig struct {
	MongoURI   string `yaml:"mongo_uri" env:"MONGO_URI"`
	Database   string `yaml:"database" env:"DATABASE"`
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OpenTelemetry providers.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader loads a Config (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "RELAYGATE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the config: defaults → YAML file → environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively walks a struct's fields, applying matching
// environment variables. Fields tagged env:"-" (maps and slices-of-struct,
// which only the YAML file can populate) are skipped.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad loads a config, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads a config from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the config for internally-inconsistent values that would
// otherwise surface as confusing runtime errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	seen := make(map[string]struct{}, len(c.Providers.Entries))
	for _, p := range c.Providers.Entries {
		if p.Key == "" {
			errs = append(errs, "provider entry missing key")
			continue
		}
		if _, dup := seen[p.Key]; dup {
			errs = append(errs, fmt.Sprintf("duplicate provider key %q", p.Key))
		}
		seen[p.Key] = struct{}{}
	}

	ids := make(map[string]struct{}, len(c.CanonicalModels.Entries))
	for _, m := range c.CanonicalModels.Entries {
		if m.ID == "" {
			errs = append(errs, "canonical model entry missing id")
			continue
		}
		if _, dup := ids[m.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate canonical model id %q", m.ID))
		}
		ids[m.ID] = struct{}{}
		for _, b := range m.Bindings {
			if _, ok := seen[b.ProviderKey]; !ok {
				errs = append(errs, fmt.Sprintf("model %q binds unknown provider %q", m.ID, b.ProviderKey))
			}
		}
	}

	if c.Policy.Global.MinScoreThreshold < 0 {
		errs = append(errs, "policy.global.min_score_threshold must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
