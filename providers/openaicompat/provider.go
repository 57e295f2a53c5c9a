package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/provider"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/types"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultChatPath       = "/v1/chat/completions"
	defaultEmbeddingsPath = "/v1/embeddings"
)

// Adapter is a provider.Adapter for any KindOpenAICompatible upstream. One
// instance is shared across every binding served by a given provider key;
// per-call configuration (base endpoint, credential) comes from the
// registry.ProviderDefinition passed into Invoke/Embed. Retry and circuit
// breaking live one layer up, in the fallback orchestrator (C9) — this
// adapter stays a thin wire-transform layer whose only resilience step is
// the single retry against def.FallbackEndpoint on a DNS or connect failure
// (see doWithFallback).
type Adapter struct {
	client *http.Client
	logger *zap.Logger
}

// New builds an Adapter with its own HTTP client. TLS is pinned to 1.2+ and
// the transport is upgraded for HTTP/2 so a slow upstream can't monopolize
// a connection meant for other in-flight requests to the same host.
func New(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn("http2 transport upgrade failed, continuing on http/1.1", zap.Error(err))
	}
	return &Adapter{
		client: &http.Client{Timeout: defaultTimeout, Transport: transport},
		logger: logger,
	}
}

func (a *Adapter) Name() string { return "openaicompat" }

func credentialOf(def registry.ProviderDefinition) Credential {
	if c, ok := def.Credential.(Credential); ok {
		return c
	}
	return Credential{}
}

func endpointOf(def registry.ProviderDefinition, path string) string {
	return endpointAt(def.BaseEndpoint, path)
}

func endpointAt(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func (a *Adapter) buildHeaders(req *http.Request, cred Credential) {
	req.Header.Set("Authorization", "Bearer "+cred.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// isDialFailure reports whether err is a DNS resolution or connection
// failure, as opposed to a timeout mid-transfer or an upstream that
// answered with an HTTP error status. http.Client wraps transport errors in
// a *url.Error, which unwraps cleanly through errors.As.
func isDialFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// doRequest issues one POST against endpoint.
func (a *Adapter) doRequest(ctx context.Context, endpoint string, payload []byte, cred Credential) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	a.buildHeaders(httpReq, cred)
	return a.client.Do(httpReq)
}

// doWithFallback issues the request against def.BaseEndpoint. On a DNS or
// connect failure it retries once against def.FallbackEndpoint, if the
// provider definition carries one; an HTTP error response never triggers a
// fallback retry since the base endpoint was reachable and answered.
func (a *Adapter) doWithFallback(ctx context.Context, def registry.ProviderDefinition, path string, payload []byte, cred Credential) (*http.Response, error) {
	resp, err := a.doRequest(ctx, endpointOf(def, path), payload, cred)
	if err == nil {
		return resp, nil
	}
	if def.FallbackEndpoint == "" || !isDialFailure(err) {
		return nil, err
	}
	a.logger.Warn("base endpoint unreachable, retrying fallback endpoint",
		zap.String("provider", def.Key), zap.Error(err))
	return a.doRequest(ctx, endpointAt(def.FallbackEndpoint, path), payload, cred)
}

// Invoke implements provider.Adapter. Non-streaming requests block for a
// single wireResponse; streaming requests return immediately with a channel
// fed by a background goroutine parsing the upstream SSE body.
func (a *Adapter) Invoke(ctx context.Context, def registry.ProviderDefinition, binding registry.ProviderModelBinding, req provider.Request) (*provider.Result, <-chan provider.StreamChunk, error) {
	cred := credentialOf(def)
	body := wireRequest{
		Model:       req.Model,
		Messages:    toWireMessages(req.Messages),
		Tools:       toWireTools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}
	if req.ToolChoice != "" {
		body.ToolChoice = req.ToolChoice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, gwerrors.New(gwerrors.InternalError, "failed to marshal request").WithCause(err).WithProvider(def.Key)
	}

	resp, err := a.doWithFallback(ctx, def, defaultChatPath, payload, cred)
	if err != nil {
		return nil, nil, classifyTransportError(err, def.Key)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := readErrorMessage(resp.Body)
		return nil, nil, mapHTTPError(resp.StatusCode, msg, def.Key)
	}

	if req.Stream {
		return nil, streamSSE(ctx, resp.Body, def.Key, a.logger), nil
	}
	defer resp.Body.Close()

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, nil, gwerrors.New(gwerrors.UpstreamUnavailable, "failed to decode upstream response").WithCause(err).WithProvider(def.Key).WithRetryable(true)
	}
	return toResult(wr, def.Key), nil, nil
}

// Embed implements provider.Adapter for providers whose wire format exposes
// an /v1/embeddings endpoint.
func (a *Adapter) Embed(ctx context.Context, def registry.ProviderDefinition, binding registry.ProviderModelBinding, req provider.EmbeddingRequest) (*provider.EmbeddingResult, error) {
	cred := credentialOf(def)
	body := wireEmbeddingRequest{Model: req.Model, Input: req.Input}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.New(gwerrors.InternalError, "failed to marshal embeddings request").WithCause(err).WithProvider(def.Key)
	}

	resp, err := a.doWithFallback(ctx, def, defaultEmbeddingsPath, payload, cred)
	if err != nil {
		return nil, classifyTransportError(err, def.Key)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, msg, def.Key)
	}

	var wr wireEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, gwerrors.New(gwerrors.UpstreamUnavailable, "failed to decode embeddings response").WithCause(err).WithProvider(def.Key).WithRetryable(true)
	}

	vectors := make([][]float32, len(wr.Data))
	for _, d := range wr.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	result := &provider.EmbeddingResult{Model: wr.Model, Vectors: vectors}
	if wr.Usage != nil {
		result.Usage = provider.Usage{
			PromptTokens:     wr.Usage.PromptTokens,
			CompletionTokens: wr.Usage.CompletionTokens,
			TotalTokens:      wr.Usage.TotalTokens,
		}
	}
	return result, nil
}

func toWireMessages(msgs []types.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			wm.ToolCalls = make([]wireToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: wireFunction{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		}
		out = append(out, wm)
	}
	return out
}

func toWireTools(tools []types.ToolSchema) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name, Arguments: t.Parameters},
		})
	}
	return out
}

func toResult(wr wireResponse, providerKey string) *provider.Result {
	choices := make([]provider.Choice, 0, len(wr.Choices))
	for _, c := range wr.Choices {
		choices = append(choices, provider.Choice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message: types.Message{
				Role:      types.RoleAssistant,
				Content:   c.Message.Content,
				Name:      c.Message.Name,
				ToolCalls: toTypesToolCalls(c.Message.ToolCalls),
			},
		})
	}
	result := &provider.Result{
		ID:       wr.ID,
		Model:    wr.Model,
		Provider: providerKey,
	}
	result.Choices = choices
	if wr.Usage != nil {
		result.Usage = provider.Usage{
			PromptTokens:     wr.Usage.PromptTokens,
			CompletionTokens: wr.Usage.CompletionTokens,
			TotalTokens:      wr.Usage.TotalTokens,
		}
	}
	if wr.Created != 0 {
		result.CreatedAt = time.Unix(wr.Created, 0)
	} else {
		result.CreatedAt = time.Unix(0, 0)
	}
	return result
}

func toTypesToolCalls(tcs []wireToolCall) []types.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]types.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		out = append(out, types.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}
	var er wireErrorResp
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		if er.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", er.Error.Message, er.Error.Type)
		}
		return er.Error.Message
	}
	return string(data)
}

func classifyTransportError(err error, providerKey string) *gwerrors.Error {
	return gwerrors.New(gwerrors.Transient, err.Error()).WithRetryable(true).WithProvider(providerKey)
}

// mapHTTPError maps an upstream HTTP status to the closed gwerrors
// taxonomy, classifying 400s with quota-related keywords as QuotaExhausted
// rather than InvalidRequest.
func mapHTTPError(status int, msg string, providerKey string) *gwerrors.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return gwerrors.New(gwerrors.AuthFailed, msg).WithProvider(providerKey)
	case http.StatusTooManyRequests:
		return gwerrors.New(gwerrors.RateLimited, msg).WithProvider(providerKey)
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "limit") {
			return gwerrors.New(gwerrors.QuotaExhausted, msg).WithProvider(providerKey)
		}
		if strings.Contains(lower, "context") || strings.Contains(lower, "too long") || strings.Contains(lower, "maximum context") {
			return gwerrors.New(gwerrors.ContextLengthExceeded, msg).WithProvider(providerKey)
		}
		return gwerrors.New(gwerrors.InvalidRequest, msg).WithProvider(providerKey)
	case http.StatusNotFound:
		return gwerrors.New(gwerrors.NotFound, msg).WithProvider(providerKey)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return gwerrors.New(gwerrors.UpstreamUnavailable, msg).WithProvider(providerKey)
	default:
		if status >= 500 {
			return gwerrors.New(gwerrors.UpstreamUnavailable, msg).WithProvider(providerKey)
		}
		return gwerrors.New(gwerrors.InvalidRequest, msg).WithProvider(providerKey)
	}
}

// streamSSE parses an OpenAI-compatible SSE body into provider.StreamChunk
// frames on a background goroutine, closing the channel (after a final
// Done:true chunk) once the upstream sends "[DONE]" or the body ends.
func streamSSE(ctx context.Context, body io.ReadCloser, providerKey string, logger *zap.Logger) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)
		reader := bufio.NewReader(body)
		var lastModel, lastID string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					logger.Warn("sse stream read failed", zap.String("provider", providerKey), zap.Error(err))
					emit(ctx, ch, provider.StreamChunk{
						Provider: providerKey,
						Err:      gwerrors.New(gwerrors.UpstreamUnavailable, err.Error()).WithRetryable(true).WithProvider(providerKey),
						Done:     true,
					})
				} else {
					emit(ctx, ch, provider.StreamChunk{ID: lastID, Provider: providerKey, Model: lastModel, Done: true})
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				emit(ctx, ch, provider.StreamChunk{ID: lastID, Provider: providerKey, Model: lastModel, Done: true})
				return
			}

			var wr wireResponse
			if err := json.Unmarshal([]byte(data), &wr); err != nil {
				emit(ctx, ch, provider.StreamChunk{
					Provider: providerKey,
					Err:      gwerrors.New(gwerrors.UpstreamUnavailable, err.Error()).WithRetryable(true).WithProvider(providerKey),
					Done:     true,
				})
				return
			}
			lastID, lastModel = wr.ID, wr.Model

			for _, c := range wr.Choices {
				chunk := provider.StreamChunk{
					ID:           wr.ID,
					Provider:     providerKey,
					Model:        wr.Model,
					Index:        c.Index,
					FinishReason: c.FinishReason,
					Delta:        types.Message{Role: types.RoleAssistant},
				}
				if c.Delta != nil {
					chunk.Delta.Content = c.Delta.Content
					chunk.Delta.ToolCalls = toTypesToolCalls(c.Delta.ToolCalls)
				}
				if wr.Usage != nil {
					chunk.Usage = &provider.Usage{
						PromptTokens:     wr.Usage.PromptTokens,
						CompletionTokens: wr.Usage.CompletionTokens,
						TotalTokens:      wr.Usage.TotalTokens,
					}
				}
				if !emit(ctx, ch, chunk) {
					return
				}
			}
		}
	}()
	return ch
}

func emit(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- chunk:
		return true
	}
}
