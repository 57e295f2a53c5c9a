package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/internal/dedup"
	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/types"
)

const endpointCompletions = "completions"

// HandleCompletions serves the legacy POST /v1/completions endpoint. It is
// expressed internally as a one-message chat completion, since every
// upstream adapter speaks the chat contract.
func (g *Gateway) HandleCompletions(w http.ResponseWriter, r *http.Request) {
	if !validateContentType(w, r, g.logger) {
		return
	}
	var req api.CompletionRequest
	if decodeJSONBody(w, r, &req, g.logger) != nil {
		return
	}
	if req.Model == "" || req.Prompt == "" {
		writeError(w, g.logger, gwerrors.New(gwerrors.InvalidRequest, "model and prompt are required"))
		return
	}

	chatReq := api.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []types.Message{types.NewUserMessage(req.Prompt)},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}

	principal, _ := PrincipalFromContext(r.Context())
	caps := registry.NewCapabilitySet()
	if req.Stream {
		caps = registry.NewCapabilitySet(registry.CapStreaming)
	}

	if req.Stream {
		g.streamLegacyCompletion(w, r, chatReq, principal, caps)
		return
	}
	g.nonStreamLegacyCompletion(w, r, chatReq, principal, caps)
}

func (g *Gateway) nonStreamLegacyCompletion(w http.ResponseWriter, r *http.Request, chatReq api.ChatCompletionRequest, principal Principal, caps registry.CapabilitySet) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultNonStreamTimeout)
	defer cancel()

	body, _ := json.Marshal(chatReq)
	fingerprint := dedup.Fingerprint(principal.TenantID, endpointCompletions, body)
	run := g.buildChatRun(chatReq, principal)

	respBytes, err := g.dedup.Execute(ctx, fingerprint, func(ctx context.Context) ([]byte, error) {
		out := g.orchestrator.Execute(ctx, chatReq.Model, caps, principal.TenantID, "", run)
		if out.Err != nil {
			return nil, out.Err
		}
		if out.Result == nil {
			return nil, gwerrors.New(gwerrors.InternalError, "orchestrator returned no result for a non-streaming request")
		}
		return json.Marshal(toLegacyResponse(out.Result))
	})
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(respBytes)
}

func (g *Gateway) streamLegacyCompletion(w http.ResponseWriter, r *http.Request, chatReq api.ChatCompletionRequest, principal Principal, caps registry.CapabilitySet) {
	g.streamChatCompletion(w, r, chatReq, principal, caps)
}

func toLegacyResponse(r *provider.Result) api.CompletionResponse {
	choices := make([]api.CompletionChoice, len(r.Choices))
	for i, c := range r.Choices {
		choices[i] = api.CompletionChoice{Index: c.Index, Text: c.Message.Content, FinishReason: c.FinishReason}
	}
	return api.CompletionResponse{
		ID:      r.ID,
		Object:  "text_completion",
		Created: r.CreatedAt.Unix(),
		Model:   r.Model,
		Choices: choices,
		Usage: api.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
}
