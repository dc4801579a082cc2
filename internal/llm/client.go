package llm

import (
	"context"
	"encoding/json"
)

// Client defines the interface for chat completion providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Role is the author of a chat message.
type Role string

// Chat roles understood by every provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of chat history.
type Message struct {
	Role    Role
	Content string
}

// Tool declares a function the model may ask to call. Parameters is a JSON
// Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a function call requested by the model. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Request is a single chat completion call. A nil Temperature or zero
// MaxTokens uses the client default. JSONMode asks the provider to return a
// single JSON object.
type Request struct {
	Temperature *float64
	System      string
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	JSONMode    bool
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is the model's reply. Content may be empty when the model only
// requested tool calls.
type Response struct {
	Content      string
	FinishReason string
	Model        string
	ToolCalls    []ToolCall
	Usage        Usage
}

// Temperature returns a pointer to t for use in Request.
func Temperature(t float64) *float64 {
	return &t
}
