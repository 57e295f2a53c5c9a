package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/internal/dedup"
	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/types"
)

const endpointResponses = "responses"

// HandleResponses serves POST /v1/responses. Input is either a bare string
// (treated as one user message) or a full message list; either way it is
// normalized to a chat completion request and driven through the same
// dedup/orchestrator path as /v1/chat/completions.
func (g *Gateway) HandleResponses(w http.ResponseWriter, r *http.Request) {
	if !validateContentType(w, r, g.logger) {
		return
	}
	var req api.ResponsesRequest
	if decodeJSONBody(w, r, &req, g.logger) != nil {
		return
	}
	if req.Model == "" || req.Input == nil {
		writeError(w, g.logger, gwerrors.New(gwerrors.InvalidRequest, "model and input are required"))
		return
	}

	messages, err := responsesInputToMessages(req.Input)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}

	chatReq := api.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    req.Tools,
		Stream:   req.Stream,
	}

	principal, _ := PrincipalFromContext(r.Context())
	caps := capabilitiesFor(chatReq)

	if req.Stream {
		g.streamChatCompletion(w, r, chatReq, principal, caps)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultNonStreamTimeout)
	defer cancel()

	body, _ := json.Marshal(chatReq)
	fingerprint := dedup.Fingerprint(principal.TenantID, endpointResponses, body)
	run := g.buildChatRun(chatReq, principal)

	respBytes, err := g.dedup.Execute(ctx, fingerprint, func(ctx context.Context) ([]byte, error) {
		out := g.orchestrator.Execute(ctx, chatReq.Model, caps, principal.TenantID, "", run)
		if out.Err != nil {
			return nil, out.Err
		}
		if out.Result == nil {
			return nil, gwerrors.New(gwerrors.InternalError, "orchestrator returned no result for a non-streaming request")
		}
		return json.Marshal(toResponsesResponse(out.Result))
	})
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(respBytes)
}

func responsesInputToMessages(input any) ([]types.Message, error) {
	switch v := input.(type) {
	case string:
		return []types.Message{types.NewUserMessage(v)}, nil
	case []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, gwerrors.New(gwerrors.InvalidRequest, "invalid input messages").WithCause(err)
		}
		var msgs []types.Message
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, gwerrors.New(gwerrors.InvalidRequest, "invalid input messages").WithCause(err)
		}
		return msgs, nil
	default:
		return nil, gwerrors.New(gwerrors.InvalidRequest, "input must be a string or a message list")
	}
}

func toResponsesResponse(r *provider.Result) api.ResponsesResponse {
	var output types.Message
	if len(r.Choices) > 0 {
		output = r.Choices[0].Message
	}
	return api.ResponsesResponse{
		ID:        r.ID,
		Object:    "response",
		CreatedAt: r.CreatedAt.Unix(),
		Model:     r.Model,
		Output:    output,
		Usage: api.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
}
