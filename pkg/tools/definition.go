// Package tools wraps local tool methods and remote MCP tools behind a
// uniform callable surface for the LLM: schema generation, parameter-key
// normalization, type conversion, and text result formatting.
package tools

import (
	"context"

	"github.com/morgana-runtime/morgana/pkg/llm"
)

// ParameterScope controls where a tool parameter's value comes from.
type ParameterScope string

const (
	// ScopeRequest — the LLM must supply the value in the tool call.
	ScopeRequest ParameterScope = "request"
	// ScopeContext — the value is resolved from the conversation context
	// at call time and never shown to the LLM.
	ScopeContext ParameterScope = "context"
)

// ToolParameter declares one parameter of a local tool.
type ToolParameter struct {
	Name        string
	Description string
	Required    bool
	Scope       ParameterScope
	Shared      bool // Writes through this parameter replicate across agents
}

// ToolDefinition declares a local tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// Handler executes a local tool. Arguments arrive normalized and with
// context-scope parameters already resolved.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// LocalTool pairs a definition with its handler. Schema, when set,
// overrides the schema derived from Definition.Parameters; used by tools
// whose parameters are reflected from a Go struct.
type LocalTool struct {
	Definition ToolDefinition
	Handler    Handler
	Schema     *llm.Schema
}

// QuickReply is a pre-labeled client-side button producing a known user
// message when clicked.
type QuickReply struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Terminal bool   `json:"terminal,omitempty"`
}

// PendingQuickRepliesKey is the reserved context key where SetQuickReplies
// stashes its payload until the agent consumes it at end of turn.
const PendingQuickRepliesKey = "__pending_quick_replies"

// ContextAccessor is the slice of the conversation context the adapter
// needs: resolving context-scope parameters and the base tools' key/value
// operations. Implemented by the conversation's per-agent context provider.
type ContextAccessor interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Drop(key string)
}
