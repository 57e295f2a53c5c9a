package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/internal/dedup"
	"github.com/relaygate/gateway/internal/fallback"
	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/internal/router"
)

const (
	endpointChatCompletions = "chatCompletions"
	defaultNonStreamTimeout = 10 * time.Minute
)

// buildChatRun adapts a chat completion request into the fallback
// orchestrator's Run signature: resolve the candidate's adapter, translate
// the request into the adapter contract, and invoke it.
func (g *Gateway) buildChatRun(req api.ChatCompletionRequest, principal Principal) fallback.Run {
	return func(ctx context.Context, cand router.EnrichedCandidate) (*provider.Result, <-chan provider.StreamChunk, error) {
		adapter, ok := g.adapters.Get(cand.ProviderKey)
		if !ok {
			return nil, nil, gwerrors.New(gwerrors.InternalError, "no adapter registered for provider").WithProvider(cand.ProviderKey)
		}
		pr := provider.Request{
			TenantID:    principal.TenantID,
			UserID:      principal.UserID,
			Model:       cand.Binding.ProviderSpecificID,
			Messages:    req.Messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			Stop:        req.Stop,
			Tools:       req.Tools,
			ToolChoice:  req.ToolChoice,
			Stream:      req.Stream,
			Metadata:    req.Metadata,
		}
		return adapter.Invoke(ctx, cand.Provider, cand.Binding, pr)
	}
}

func toAPIResponse(r *provider.Result) api.ChatCompletionResponse {
	choices := make([]api.ChatChoice, len(r.Choices))
	for i, c := range r.Choices {
		choices[i] = api.ChatChoice{Index: c.Index, Message: c.Message, FinishReason: c.FinishReason}
	}
	return api.ChatCompletionResponse{
		ID:      r.ID,
		Object:  "chat.completion",
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

// HandleChatCompletions serves POST /v1/chat/completions. Non-streaming
// requests go through the deduplicator (C10) before the fallback
// orchestrator (C9); streaming requests bypass C10 entirely since there is
// no single response body to cache against a joiner.
func (g *Gateway) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if !validateContentType(w, r, g.logger) {
		return
	}
	var req api.ChatCompletionRequest
	if decodeJSONBody(w, r, &req, g.logger) != nil {
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, g.logger, gwerrors.New(gwerrors.InvalidRequest, "model and messages are required"))
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	caps := capabilitiesFor(req)

	if req.Stream {
		g.streamChatCompletion(w, r, req, principal, caps)
		return
	}
	g.nonStreamChatCompletion(w, r, req, principal, caps)
}

func (g *Gateway) nonStreamChatCompletion(w http.ResponseWriter, r *http.Request, req api.ChatCompletionRequest, principal Principal, caps registry.CapabilitySet) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultNonStreamTimeout)
	defer cancel()

	body, _ := json.Marshal(req)
	fingerprint := dedup.Fingerprint(principal.TenantID, endpointChatCompletions, body)
	run := g.buildChatRun(req, principal)

	respBytes, err := g.dedup.Execute(ctx, fingerprint, func(ctx context.Context) ([]byte, error) {
		out := g.orchestrator.Execute(ctx, req.Model, caps, principal.TenantID, "", run)
		if out.Err != nil {
			return nil, out.Err
		}
		if out.Result == nil {
			return nil, gwerrors.New(gwerrors.InternalError, "orchestrator returned no result for a non-streaming request")
		}
		return json.Marshal(toAPIResponse(out.Result))
	})
	if err != nil {
		writeError(w, g.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(respBytes)
}

// streamChatCompletion drives the orchestrator directly (no dedup) and
// relays the provider's stream as SSE, framing each chunk as an OpenAI
// chat.completion.chunk and terminating with "data: [DONE]\n\n". The
// request context is tied to the client connection, so a disconnect
// cancels the upstream call.
func (g *Gateway) streamChatCompletion(w http.ResponseWriter, r *http.Request, req api.ChatCompletionRequest, principal Principal, caps registry.CapabilitySet) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, g.logger, gwerrors.New(gwerrors.InternalError, "streaming unsupported by response writer"))
		return
	}

	run := g.buildChatRun(req, principal)
	out := g.orchestrator.Execute(r.Context(), req.Model, caps, principal.TenantID, "", run)
	if out.Err != nil {
		writeError(w, g.logger, out.Err)
		return
	}
	if out.Stream == nil {
		writeError(w, g.logger, gwerrors.New(gwerrors.InternalError, "orchestrator returned no stream for a streaming request"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var usage *provider.Usage
	var quotaKey, providerKey string
	for chunk := range out.Stream {
		if providerKey == "" {
			providerKey = chunk.Provider
			quotaKey = router.QuotaKey(chunk.Provider, req.Model)
		}
		if chunk.Err != nil {
			writeSSEError(w, chunk.Err)
			flusher.Flush()
			break
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		frame := api.ChatCompletionChunk{
			ID:      chunk.ID,
			Object:  "chat.completion.chunk",
			Model:   chunk.Model,
			Choices: []api.ChunkChoice{{Index: chunk.Index, Delta: chunk.Delta, FinishReason: chunk.FinishReason}},
		}
		if chunk.Done && chunk.Usage != nil {
			frame.Usage = &api.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	if usage != nil && quotaKey != "" {
		g.quota.RecordUsage(quotaKey, usage.PromptTokens, usage.CompletionTokens)
	}
}

func writeSSEError(w http.ResponseWriter, gwErr *gwerrors.Error) {
	payload, _ := json.Marshal(api.ErrorResponse{Error: api.ErrorDetail{
		Message: gwErr.Message,
		Type:    string(gwErr.Code),
		Code:    string(gwErr.Code),
	}})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
}
