package gateway

import (
	"encoding/json"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/types"
)

// genChunk builds a random ChatCompletionChunk the same shape
// streamChatCompletion emits on the wire.
func genChunk(t *rapid.T) api.ChatCompletionChunk {
	return api.ChatCompletionChunk{
		ID:     rapid.StringMatching(`chatcmpl-[a-z0-9]{8,16}`).Draw(t, "id"),
		Object: "chat.completion.chunk",
		Model:  rapid.StringMatching(`[a-z0-9/.\-]{3,24}`).Draw(t, "model"),
		Choices: []api.ChunkChoice{{
			Index: rapid.IntRange(0, 4).Draw(t, "index"),
			Delta: types.Message{
				Role:    types.RoleAssistant,
				Content: rapid.String().Draw(t, "content"),
			},
			FinishReason: rapid.SampledFrom([]string{"", "stop", "length", "tool_calls"}).Draw(t, "finishReason"),
		}},
	}
}

// encodeSSEFrame applies the same "data: <json>\n\n" convention
// streamChatCompletion writes to the response body.
func encodeSSEFrame(chunk api.ChatCompletionChunk) (string, error) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return "", err
	}
	return "data: " + string(payload) + "\n\n", nil
}

// decodeSSEFrame reverses encodeSSEFrame: strip the "data: " prefix and the
// trailing blank-line terminator, then unmarshal the JSON payload.
func decodeSSEFrame(frame string) (api.ChatCompletionChunk, error) {
	body := strings.TrimSuffix(frame, "\n\n")
	body = strings.TrimPrefix(body, "data: ")
	var chunk api.ChatCompletionChunk
	err := json.Unmarshal([]byte(body), &chunk)
	return chunk, err
}

// TestSSEFrameRoundTrip checks that every chunk emitted onto the wire comes
// back out identical once a client re-parses the frame, for arbitrary
// id/model/content/finish-reason combinations including ones containing
// characters JSON must escape (quotes, newlines, unicode).
func TestSSEFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		chunk := genChunk(rt)

		frame, err := encodeSSEFrame(chunk)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		if !strings.HasPrefix(frame, "data: ") || !strings.HasSuffix(frame, "\n\n") {
			rt.Fatalf("frame does not follow the data:/blank-line SSE convention: %q", frame)
		}

		decoded, err := decodeSSEFrame(frame)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}

		if decoded.ID != chunk.ID || decoded.Model != chunk.Model || decoded.Object != chunk.Object {
			rt.Fatalf("round-trip mismatch: got %+v, want %+v", decoded, chunk)
		}
		if len(decoded.Choices) != 1 || decoded.Choices[0].Delta.Content != chunk.Choices[0].Delta.Content {
			rt.Fatalf("choice delta mismatch: got %+v, want %+v", decoded.Choices, chunk.Choices)
		}
		if decoded.Choices[0].FinishReason != chunk.Choices[0].FinishReason {
			rt.Fatalf("finish reason mismatch: got %q, want %q", decoded.Choices[0].FinishReason, chunk.Choices[0].FinishReason)
		}
	})
}
