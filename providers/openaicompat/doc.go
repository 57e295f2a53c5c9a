// Package openaicompat provides the one provider.Adapter implementation
// every KindOpenAICompatible registry entry shares: DeepSeek, Qwen, GLM,
// Grok, Doubao, MiniMax, and any other upstream that speaks the OpenAI
// chat-completions and embeddings wire format differ only in base
// endpoint and credential, both of which live on the registry.ProviderDefinition
// passed into each call.
package openaicompat
