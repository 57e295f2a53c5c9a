package gateway

import (
	"net/http"
	"time"

	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/router"
)

const transientEmbedCooldown = 30 * time.Second

// HandleEmbeddings serves POST /v1/embeddings. Embeddings are not routed
// through the fallback orchestrator (C9), since Adapter.Embed has no
// streaming form. Instead each of the router's candidates is tried once, in
// order, until one succeeds or a terminal or Canceled error stops the search;
// there is no per-candidate retry or circuit breaker.
func (g *Gateway) HandleEmbeddings(w http.ResponseWriter, r *http.Request) {
	if !validateContentType(w, r, g.logger) {
		return
	}
	var req api.EmbeddingsRequest
	if decodeJSONBody(w, r, &req, g.logger) != nil {
		return
	}
	if req.Model == "" || len(req.Input) == 0 {
		writeError(w, g.logger, gwerrors.New(gwerrors.InvalidRequest, "model and input are required"))
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	caps := registry.NewCapabilitySet()

	candidates, err := g.router.Candidates(r.Context(), req.Model, caps, principal.TenantID, g.policy)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	if len(candidates) == 0 {
		candidates, _ = g.router.EmergencyCandidates(r.Context(), req.Model, caps, principal.TenantID, g.policy)
	}
	if len(candidates) == 0 {
		writeError(w, g.logger, gwerrors.New(gwerrors.NotFound, "no provider can serve this model"))
		return
	}

	var lastErr error
	for _, cand := range candidates {
		adapter, ok := g.adapters.Get(cand.ProviderKey)
		if !ok {
			continue
		}
		key := router.QuotaKey(cand.ProviderKey, cand.CanonicalID)
		result, embedErr := adapter.Embed(r.Context(), cand.Provider, cand.Binding, provider.EmbeddingRequest{
			TenantID: principal.TenantID,
			Model:    cand.Binding.ProviderSpecificID,
			Input:    req.Input,
		})
		if embedErr == nil {
			g.health.MarkSuccess(key)
			g.quota.RecordUsage(key, result.Usage.PromptTokens, result.Usage.CompletionTokens)
			writeJSON(w, http.StatusOK, toEmbeddingsResponse(req.Model, result))
			return
		}
		lastErr = embedErr
		gwErr, _ := gwerrors.As(embedErr)
		if gwErr != nil && (gwErr.Code.IsTerminal() || gwErr.Code == gwerrors.Canceled) {
			break
		}
		g.health.MarkFailure(key, transientEmbedCooldown, embedErr.Error())
	}
	if lastErr == nil {
		lastErr = gwerrors.New(gwerrors.UpstreamUnavailable, "all candidate providers exhausted")
	}
	writeError(w, g.logger, lastErr)
}

func toEmbeddingsResponse(model string, r *provider.EmbeddingResult) api.EmbeddingsResponse {
	data := make([]api.Embedding, len(r.Vectors))
	for i, v := range r.Vectors {
		data[i] = api.Embedding{Index: i, Object: "embedding", Embedding: v}
	}
	return api.EmbeddingsResponse{
		Object: "list",
		Model:  model,
		Data:   data,
		Usage: api.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
}
