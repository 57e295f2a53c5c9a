package gateway

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/relaygate/gateway/internal/dedup"
	"github.com/relaygate/gateway/internal/fallback"
	"github.com/relaygate/gateway/internal/health"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/quota"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/router"
	"github.com/relaygate/gateway/internal/scoring"
)

// Gateway composes every downstream component (C1, C3, C4, C8, C9, C10) into
// the HTTP frontend (C11): it decodes OpenAI-shaped requests, derives
// required capabilities, and drives dedup then fallback to produce a
// response.
type Gateway struct {
	registry     *registry.Registry
	router       router.Router
	orchestrator fallback.Orchestrator
	dedup        dedup.Deduplicator
	adapters     *provider.AdapterRegistry
	health       health.Store
	quota        quota.Tracker
	policy       scoring.Policy
	auth         AuthExtractor
	logger       *zap.Logger
}

// Config bundles the already-constructed components a Gateway wires
// together; the caller (cmd/relaygate) owns their lifecycle.
type Config struct {
	Registry     *registry.Registry
	Router       router.Router
	Orchestrator fallback.Orchestrator
	Dedup        dedup.Deduplicator
	Adapters     *provider.AdapterRegistry
	Health       health.Store
	Quota        quota.Tracker
	Policy       scoring.Policy
	Auth         AuthExtractor
	Logger       *zap.Logger
}

func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		registry:     cfg.Registry,
		router:       cfg.Router,
		orchestrator: cfg.Orchestrator,
		dedup:        cfg.Dedup,
		adapters:     cfg.Adapters,
		health:       cfg.Health,
		quota:        cfg.Quota,
		policy:       cfg.Policy,
		auth:         cfg.Auth,
		logger:       logger,
	}
}

// RegisterRoutes mounts the OpenAI-compatible surface onto mux, wrapped in
// the auth middleware.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/chat/completions", g.withAuth(g.HandleChatCompletions))
	mux.HandleFunc("/v1/completions", g.withAuth(g.HandleCompletions))
	mux.HandleFunc("/v1/responses", g.withAuth(g.HandleResponses))
	mux.HandleFunc("/v1/embeddings", g.withAuth(g.HandleEmbeddings))
	mux.HandleFunc("/v1/models", g.withAuth(g.handleModelsCollection))
	mux.HandleFunc("/v1/models/", g.withAuth(g.handleModelsItem))
}

func (g *Gateway) handleModelsCollection(w http.ResponseWriter, r *http.Request) {
	g.HandleListModels(w, r)
}

func (g *Gateway) handleModelsItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/models/")
	if id == "" {
		g.HandleListModels(w, r)
		return
	}
	g.HandleGetModel(w, r, id)
}

// withAuth extracts the caller's Principal and attaches it to the request
// context before delegating to next. A missing/invalid bearer token is
// rejected with AuthFailed.
func (g *Gateway) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.auth == nil {
			next(w, r)
			return
		}
		principal, err := g.auth.Extract(r)
		if err != nil {
			writeError(w, g.logger, authFailedError(err))
			return
		}
		r = r.WithContext(withPrincipal(r.Context(), principal))
		next(w, r)
	}
}
