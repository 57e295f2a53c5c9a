package gateway

import (
	"github.com/relaygate/gateway/api"
	"github.com/relaygate/gateway/internal/registry"
	"github.com/relaygate/gateway/types"
)

// capabilitiesFor derives the registry.CapabilitySet a chat completion
// request requires from its shape — tools present means tool-calling
// capability is mandatory, an image part means vision, Stream means
// streaming must be supported by the serving model.
func capabilitiesFor(req api.ChatCompletionRequest) registry.CapabilitySet {
	var caps []registry.Capability
	if req.Stream {
		caps = append(caps, registry.CapStreaming)
	}
	if len(req.Tools) > 0 {
		caps = append(caps, registry.CapTools)
	}
	if req.ToolChoice != "" && req.ToolChoice != "none" && req.ToolChoice != "auto" {
		caps = append(caps, registry.CapTools)
	}
	for _, m := range req.Messages {
		if hasImage(m) {
			caps = append(caps, registry.CapVision)
			break
		}
	}
	return registry.NewCapabilitySet(caps...)
}

func hasImage(m types.Message) bool {
	return len(m.Images) > 0
}
