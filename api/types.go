// Package api provides the OpenAI-compatible wire types the gateway
// frontend (C11) decodes requests into and encodes responses from.
package api

import (
	"github.com/relaygate/gateway/types"
)

// =============================================================================
// Chat Completions — POST /v1/chat/completions
// =============================================================================

// ChatCompletionRequest is the OpenAI-shaped chat completions request body.
// @Description Chat completion request
type ChatCompletionRequest struct {
	Model       string             `json:"model" example:"gpt-4o" binding:"required"`
	Messages    []types.Message    `json:"messages" binding:"required"`
	MaxTokens   int                `json:"max_tokens,omitempty" example:"1024"`
	Temperature float32            `json:"temperature,omitempty" example:"0.7"`
	TopP        float32            `json:"top_p,omitempty" example:"1.0"`
	Stop        []string           `json:"stop,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
	ToolChoice  string             `json:"tool_choice,omitempty" example:"auto"`
	Stream      bool               `json:"stream,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// ChatCompletionResponse is the non-streaming response.
// @Description Chat completion response
type ChatCompletionResponse struct {
	ID      string             `json:"id" example:"chatcmpl-abc123"`
	Object  string             `json:"object" example:"chat.completion"`
	Created int64              `json:"created"`
	Model   string             `json:"model" example:"gpt-4o"`
	Choices []ChatChoice       `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// ChatChoice is one completion choice.
type ChatChoice struct {
	Index        int           `json:"index" example:"0"`
	Message      types.Message `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty" example:"stop"`
}

// ChatCompletionChunk is one SSE frame of a streaming response.
// @Description Streaming chat completion chunk
type ChatCompletionChunk struct {
	ID      string            `json:"id" example:"chatcmpl-abc123"`
	Object  string            `json:"object" example:"chat.completion.chunk"`
	Created int64             `json:"created"`
	Model   string            `json:"model,omitempty"`
	Choices []ChunkChoice     `json:"choices"`
	Usage   *Usage            `json:"usage,omitempty"`
}

// ChunkChoice is one choice's delta within a streaming chunk.
type ChunkChoice struct {
	Index        int           `json:"index" example:"0"`
	Delta        types.Message `json:"delta"`
	FinishReason string        `json:"finish_reason,omitempty" example:"stop"`
}

// Usage mirrors the OpenAI usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" example:"100"`
	CompletionTokens int `json:"completion_tokens" example:"50"`
	TotalTokens      int `json:"total_tokens" example:"150"`
}

// =============================================================================
// Completions (legacy) — POST /v1/completions
// =============================================================================

// CompletionRequest is the legacy single-prompt completions body.
type CompletionRequest struct {
	Model       string   `json:"model" binding:"required"`
	Prompt      string   `json:"prompt" binding:"required"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature,omitempty"`
	TopP        float32  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// CompletionResponse is the legacy completions response.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object" example:"text_completion"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// CompletionChoice is one legacy-completions choice.
type CompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// =============================================================================
// Responses — POST /v1/responses
// =============================================================================

// ResponsesRequest is the newer "responses" endpoint body, a superset of
// chat completions that also accepts a flat input string.
type ResponsesRequest struct {
	Model string          `json:"model" binding:"required"`
	Input any             `json:"input" binding:"required"` // string or []types.Message
	Tools []types.ToolSchema `json:"tools,omitempty"`
	Stream bool           `json:"stream,omitempty"`
}

// ResponsesResponse is the non-streaming "responses" reply.
type ResponsesResponse struct {
	ID        string        `json:"id"`
	Object    string        `json:"object" example:"response"`
	CreatedAt int64         `json:"created_at"`
	Model     string        `json:"model"`
	Output    types.Message `json:"output"`
	Usage     Usage         `json:"usage"`
}

// =============================================================================
// Embeddings — POST /v1/embeddings
// =============================================================================

// EmbeddingsRequest requests one or more embedding vectors.
type EmbeddingsRequest struct {
	Model string   `json:"model" binding:"required"`
	Input []string `json:"input" binding:"required"`
}

// EmbeddingsResponse carries the resulting vectors.
type EmbeddingsResponse struct {
	Object string      `json:"object" example:"list"`
	Model  string      `json:"model"`
	Data   []Embedding `json:"data"`
	Usage  Usage       `json:"usage"`
}

// Embedding is one input's resulting vector.
type Embedding struct {
	Index     int       `json:"index"`
	Object    string    `json:"object" example:"embedding"`
	Embedding []float32 `json:"embedding"`
}

// =============================================================================
// Models — GET /v1/models, GET /v1/models/{id}
// =============================================================================

// Model describes one canonical model as advertised to clients.
type Model struct {
	ID      string `json:"id" example:"gpt-4o"`
	Object  string `json:"object" example:"model"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by" example:"relaygate"`
}

// ModelListResponse is GET /v1/models' body.
type ModelListResponse struct {
	Object string  `json:"object" example:"list"`
	Data   []Model `json:"data"`
}

// =============================================================================
// Errors
// =============================================================================

// ErrorResponse is the envelope every error reply uses, matching the
// OpenAI-compatible shape: {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the structured fields clients key off of.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty" example:"invalid_request_error"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty" example:"RATE_LIMITED"`
}
