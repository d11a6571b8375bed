package llm

import "context"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatClient is the provider-neutral interface for one LLM call.
// Implementations are process-wide and safe for concurrent use; every
// agent in every conversation shares one client per provider.
type ChatClient interface {
	// Chat sends a conversation and returns the provider's response.
	// Tool calls come back as structured ToolCall values, never parsed
	// from text.
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Model returns the configured model name.
	Model() string
}

// Request is one LLM call: the conversation so far plus the tools the
// model may invoke. Tools nil means no tool calling.
type Request struct {
	Messages []Message
	Tools    []ToolSpec
}

// Response is the provider's reply to one Request.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// Message is one entry of the conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // For assistant messages
	ToolCallID string     // For tool result messages
	ToolName   string     // For tool result messages
}

// ToolCall represents an LLM's request to call a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// ToolSpec describes a tool available to the LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      Schema
}

// Schema is the JSON-schema object describing a tool's parameters.
type Schema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// TokenUsage reports token consumption for one or more LLM calls.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Add accumulates usage from another call
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
