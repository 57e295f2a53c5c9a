package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/relaygate/gateway/config"
	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/costview"
	"github.com/relaygate/gateway/internal/dedup"
	"github.com/relaygate/gateway/internal/fallback"
	"github.com/relaygate/gateway/internal/gateway"
	"github.com/relaygate/gateway/internal/health"
	"github.com/relaygate/gateway/internal/metrics"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/quota"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/resolver"
	"github.com/relaygate/gateway/internal/router"
	"github.com/relaygate/gateway/internal/scoring"
	"github.com/relaygate/gateway/internal/server"
	"github.com/relaygate/gateway/internal/telemetry"
	"github.com/relaygate/gateway/providers/openaicompat"
)

// Server owns the gateway's process lifecycle: the component graph (C1-C11),
// the HTTP and metrics listeners, and graceful shutdown.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler    *gateway.HealthHandler
	metricsCollector *metrics.Collector
	redisClient      *redis.Client
	mongoClient      *mongo.Client

	registry      *registry.Registry
	configWatcher *config.FileWatcher

	rateLimiterCancel context.CancelFunc
}

// NewServer builds a Server from an already-loaded, validated config.
// Component construction (registry/router/orchestrator/gateway) happens in
// Start so any wiring error surfaces as a clean startup failure rather than
// a panic deep in a constructor chain.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otel,
	}
}

func (s *Server) Start() error {
	if s.cfg.Redis.Addr != "" && s.usesRedisBackend() {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
	}

	if s.cfg.Audit.MongoURI != "" {
		mc, err := mongo.Connect(options.Client().ApplyURI(s.cfg.Audit.MongoURI))
		if err != nil {
			return fmt.Errorf("connect audit mongo client: %w", err)
		}
		s.mongoClient = mc
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := audit.EnsureIndexes(ctx, mc, s.cfg.Audit.Database, s.cfg.Audit.Collection); err != nil {
			s.logger.Warn("audit index creation failed", zap.Error(err))
		}
		cancel()
	}

	gw, err := s.buildGateway()
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	s.metricsCollector = metrics.NewCollector("relaygate", s.logger)
	s.healthHandler = gateway.NewHealthHandler(s.logger)
	if s.redisClient != nil {
		s.healthHandler.RegisterCheck(gateway.NewRedisHealthCheck("redis", func(ctx context.Context) error {
			return s.redisClient.Ping(ctx).Err()
		}))
	}

	if err := s.startHTTPServer(gw); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	s.startMetricsServer()

	if err := s.watchConfig(); err != nil {
		s.logger.Warn("config watcher not started", zap.Error(err))
	}

	return nil
}

// watchConfig starts a FileWatcher on the loaded config file, if any, and
// rebuilds the registry snapshot on every change instead of requiring a
// restart. A process started without --config (env/defaults only) has
// nothing on disk to watch.
func (s *Server) watchConfig() error {
	if s.configPath == "" {
		return nil
	}

	w, err := config.NewFileWatcher([]string{s.configPath}, config.WithWatcherLogger(s.logger))
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	w.OnChange(func(event config.FileEvent) {
		if event.Op == config.FileOpRemove {
			return
		}
		s.reloadRegistry()
	})

	if err := w.Start(context.Background()); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	s.configWatcher = w
	return nil
}

// reloadRegistry re-reads the config file and atomically swaps it into the
// live registry. A bad edit is logged and discarded; the previous snapshot
// stays in effect until a valid one replaces it.
func (s *Server) reloadRegistry() {
	cfg, err := config.NewLoader().WithConfigPath(s.configPath).Load()
	if err != nil {
		s.logger.Error("config reload failed, keeping previous snapshot", zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Error("reloaded config invalid, keeping previous snapshot", zap.Error(err))
		return
	}
	if err := validateProviderKinds(cfg); err != nil {
		s.logger.Error("reloaded config invalid, keeping previous snapshot", zap.Error(err))
		return
	}

	s.registry.Swap(buildSnapshot(cfg))
	s.logger.Info("registry snapshot reloaded from config change")
}

// usesRedisBackend reports whether any of the dedup/health/quota stores are
// configured to use Redis rather than the in-memory default.
func (s *Server) usesRedisBackend() bool {
	return s.cfg.Dedup.Backend == "redis"
}

// buildGateway constructs the full C1-C11 component graph from static
// config: the registry snapshot, resolver, cost view, health/quota/dedup
// stores, router, fallback orchestrator, provider adapter registry, and
// finally the gateway.Gateway itself.
func (s *Server) buildGateway() (*gateway.Gateway, error) {
	snap := buildSnapshot(s.cfg)
	reg := registry.New(snap)
	s.registry = reg

	res := resolver.New(reg)
	cv := costview.New(reg)

	var (
		healthStore health.Store
		quotaTrack  quota.Tracker
		dedupStore  dedup.Deduplicator
	)
	if s.cfg.Dedup.Backend == "redis" && s.redisClient != nil {
		healthStore = health.NewRedis(s.redisClient, "relaygate:health:")
		quotaTrack = quota.NewRedis(s.redisClient, "relaygate:quota:")
		dedupStore = dedup.NewRedis(s.redisClient, "relaygate:dedup:")
	} else {
		healthStore = health.NewMemory()
		quotaTrack = quota.NewMemory()
		dedupStore = dedup.NewMemory()
	}
	if !s.cfg.Dedup.Enabled {
		dedupStore = dedup.NewMemory()
	}

	baseCaps := func(providerKey string) quota.Caps {
		def, ok := reg.ProviderByKey(providerKey)
		if !ok {
			return quota.Caps{}
		}
		return quota.Caps{RPM: def.DefaultRPM, TPM: def.DefaultTPM}
	}

	policy := policyFromConfig(s.cfg.Policy)

	probeProviders(context.Background(), snap, healthStore, &http.Client{Timeout: probeTimeout}, s.logger)

	rt := router.New(reg, res, healthStore, quotaTrack, cv, baseCaps)
	var auditLogger audit.Logger = audit.Nop{}
	if s.mongoClient != nil {
		auditLogger = audit.NewMongo(s.mongoClient, s.cfg.Audit.Database, s.cfg.Audit.Collection, s.logger)
	}
	orch := fallback.NewWithAudit(rt, healthStore, quotaTrack, cv, policy, s.logger, auditLogger)

	adapters := provider.NewAdapterRegistry()
	sharedOpenAICompat := openaicompat.New(s.logger)
	for _, p := range s.cfg.Providers.Entries {
		if registry.ProviderKind(p.Kind) == registry.KindOpenAICompatible {
			adapters.Register(p.Key, sharedOpenAICompat)
		}
	}

	var auth gateway.AuthExtractor
	if s.cfg.Server.JWTSecret != "" {
		auth = gateway.NewJWTExtractor([]byte(s.cfg.Server.JWTSecret))
	}

	gw := gateway.New(gateway.Config{
		Registry:     reg,
		Router:       rt,
		Orchestrator: orch,
		Dedup:        dedupStore,
		Adapters:     adapters,
		Health:       healthStore,
		Quota:        quotaTrack,
		Policy:       policy,
		Auth:         auth,
		Logger:       s.logger,
	})

	return gw, nil
}

// policyFromConfig converts the static PolicyConfig into the scoring.Policy
// the fallback orchestrator and router score candidates with. Only the
// global layer is used: tenant/user override tables are loaded from config
// but are neither checked by config.Validate nor merged into per-request
// scoring (scoring.Merge is not called on this path).
func policyFromConfig(pc config.PolicyConfig) scoring.Policy {
	return scoring.Policy{
		WeightQuality:     pc.Global.WeightQuality,
		WeightQuota:       pc.Global.WeightQuota,
		WeightSafety:      pc.Global.WeightSafety,
		WeightLatency:     pc.Global.WeightLatency,
		PreferFree:        pc.Global.PreferFree,
		FreeTierBonus:     pc.Global.FreeTierBonus,
		MinScoreThreshold: pc.Global.MinScoreThreshold,
	}
}

func (s *Server) startHTTPServer(gw *gateway.Gateway) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	gw.RegisterRoutes(mux)

	ctx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		SecurityHeaders(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	return nil
}

func (s *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 16,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		s.logger.Error("failed to start metrics server", zap.Error(err))
	}
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then shuts everything down.
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	s.logger.Info("shutdown signal received")
	s.Shutdown()
}

func (s *Server) Shutdown() {
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.configWatcher != nil {
		if err := s.configWatcher.Stop(); err != nil {
			s.logger.Error("config watcher stop error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("redis client close error", zap.Error(err))
		}
	}
	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(ctx); err != nil {
			s.logger.Error("mongo client disconnect error", zap.Error(err))
		}
	}
}
