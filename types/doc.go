/*
Package types provides the shared types relaygate's packages build on: chat
messages, tool schemas, and a character-based token estimator
(EstimateTokenizer), which no other relaygate package calls. It has zero dependencies on other
relaygate packages, so every other package can import it freely without
risking an import cycle.

# Core types

  - Message    — a chat turn (Role, Content, ToolCalls, Images)
  - ToolSchema — a tool definition (name + description + JSON Schema parameters)
  - ToolResult — a tool's output, convertible back into a Message to continue
    the conversation
  - JSONSchema — JSON Schema construction helpers (NewObjectSchema, etc.)
  - Tokenizer  — the token-counting interface (Message/ToolSchema aware)
  - TokenUsage — an accumulating token count

# Context propagation

WithTraceID/WithTenantID/WithUserID/WithRunID/WithLLMModel/WithPromptBundleVersion
carry request-scoped identifiers through context.Context without every layer
needing its own key type.
*/
package types
