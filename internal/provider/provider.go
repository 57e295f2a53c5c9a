// Package provider defines the single adapter contract every upstream
// speaks: Invoke. Concrete adapters (providers/openaicompat, ...) implement
// wire transformation, response parsing, streaming decode, and error
// normalization into the closed gwerrors taxonomy.
package provider

import (
	"context"
	"time"

	"github.com/relaygate/gateway/internal/gwerrors"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/types"
)

// Request is the OpenAI-shaped request with Model already replaced by the
// binding's provider-specific identifier.
type Request struct {
	TraceID     string
	TenantID    string
	UserID      string
	Model       string
	Messages    []types.Message
	MaxTokens   int
	Temperature float32
	TopP        float32
	Stop        []string
	Tools       []types.ToolSchema
	ToolChoice  string
	Stream      bool
	Metadata    map[string]string
}

// Usage mirrors the OpenAI usage block.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Choice is one completion choice.
type Choice struct {
	Index        int
	Message      types.Message
	FinishReason string
}

// Result is a single, non-streaming completion result.
type Result struct {
	ID        string
	Model     string
	Provider  string
	Choices   []Choice
	Usage     Usage
	CreatedAt time.Time
}

// StreamChunk is one frame of a streaming completion, or the terminal frame
// carrying Err (which may be nil on a clean end-of-stream).
type StreamChunk struct {
	ID           string
	Provider     string
	Model        string
	Index        int
	Delta        types.Message
	FinishReason string
	Usage        *Usage
	Err          *gwerrors.Error
	Done         bool
}

// EmbeddingRequest is an embeddings call with Model already replaced by the
// binding's provider-specific identifier.
type EmbeddingRequest struct {
	TenantID string
	Model    string
	Input    []string
}

// EmbeddingResult is a single embeddings response.
type EmbeddingResult struct {
	Model   string
	Vectors [][]float32
	Usage   Usage
}

// Adapter is the contract every upstream provider implements. Invoke either
// returns a Result (non-streaming) or a channel of StreamChunk (streaming),
// selected by req.Stream. Cancellation of ctx must close the upstream
// connection and end any in-flight stream with a Canceled chunk. Embed is
// optional: adapters for providers without an embeddings endpoint return
// gwerrors.NotFound.
type Adapter interface {
	Invoke(ctx context.Context, def registry.ProviderDefinition, binding registry.ProviderModelBinding, req Request) (*Result, <-chan StreamChunk, error)
	Embed(ctx context.Context, def registry.ProviderDefinition, binding registry.ProviderModelBinding, req EmbeddingRequest) (*EmbeddingResult, error)
	Name() string
}
