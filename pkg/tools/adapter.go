package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
)

// Adapter presents one agent's tool set — local tools plus bound remote
// MCP tools — as a uniform callable surface for the LLM run loop.
// An adapter belongs to exactly one agent and is only touched from that
// agent's serial dispatch, so it needs no locking.
type Adapter struct {
	context ContextAccessor
	norm    config.NormalizationConfig

	local  map[string]LocalTool
	remote map[string]mcpBinding
	caller MCPCaller

	logger *slog.Logger
}

// Compile-time check that Adapter implements llm.ToolExecutor.
var _ llm.ToolExecutor = (*Adapter)(nil)

// NewAdapter creates an adapter bound to one agent's context
func NewAdapter(contextAccessor ContextAccessor, norm config.NormalizationConfig) *Adapter {
	return &Adapter{
		context: contextAccessor,
		norm:    norm,
		local:   make(map[string]LocalTool),
		remote:  make(map[string]mcpBinding),
		logger:  slog.With("component", "tool_adapter"),
	}
}

// RegisterLocal adds a local tool. Names must be unique across the adapter.
func (a *Adapter) RegisterLocal(tool LocalTool) error {
	name := tool.Definition.Name
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := a.local[name]; exists {
		return fmt.Errorf("duplicate tool name: %s", name)
	}
	if _, exists := a.remote[name]; exists {
		return fmt.Errorf("duplicate tool name: %s", name)
	}
	a.local[name] = tool
	return nil
}

// BindMCPServers discovers tools on the given servers and binds them under
// "server.tool" names. Servers that fail to list are skipped with a log
// line; partial tool sets are better than none.
func (a *Adapter) BindMCPServers(ctx context.Context, caller MCPCaller, servers []string) {
	a.caller = caller
	for _, server := range servers {
		remoteTools, err := caller.ListTools(ctx, server)
		if err != nil {
			a.logger.Warn("Failed to list tools from MCP server",
				"server", server, "error", err)
			continue
		}
		for _, tool := range remoteTools {
			schema, paramTypes := convertMCPSchema(tool)
			a.remote[qualifiedToolName(server, tool.Name)] = mcpBinding{
				server:      server,
				tool:        tool.Name,
				description: tool.Description,
				schema:      schema,
				paramTypes:  paramTypes,
			}
		}
	}
}

// Specs returns the LLM-visible tool specifications, sorted by name.
// Context-scope parameters of local tools are omitted from the schemas.
func (a *Adapter) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(a.local)+len(a.remote))
	for name, tool := range a.local {
		schema := schemaFromDefinition(tool.Definition)
		if tool.Schema != nil {
			schema = *tool.Schema
		}
		specs = append(specs, llm.ToolSpec{
			Name:        name,
			Description: tool.Definition.Description,
			Schema:      schema,
		})
	}
	for name, binding := range a.remote {
		specs = append(specs, llm.ToolSpec{
			Name:        name,
			Description: binding.description,
			Schema:      binding.schema,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute runs one tool call on behalf of the LLM. Failures of any kind
// come back as "Error: ..." text for the model to reason about, never as
// Go errors; tool failures must not crash the agent.
func (a *Adapter) Execute(ctx context.Context, call llm.ToolCall) string {
	args := ParseArguments(call.Arguments)

	if tool, ok := a.local[call.Name]; ok {
		return a.executeLocal(ctx, tool, args)
	}
	if binding, ok := a.remote[call.Name]; ok {
		return a.executeRemote(ctx, binding, args)
	}
	return fmt.Sprintf("Error: tool not found: %s", call.Name)
}

func (a *Adapter) executeLocal(ctx context.Context, tool LocalTool, args map[string]any) string {
	var expected []string
	required := make(map[string]bool)
	if tool.Schema != nil {
		for name := range tool.Schema.Properties {
			expected = append(expected, name)
		}
		sort.Strings(expected)
		for _, name := range tool.Schema.Required {
			required[name] = true
		}
	} else {
		for _, p := range tool.Definition.Parameters {
			if p.Scope == ScopeContext {
				continue
			}
			expected = append(expected, p.Name)
			required[p.Name] = p.Required
		}
	}

	normalized, err := NormalizeKeys(args, expected, required, a.norm)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	// Resolve context-scope parameters from the conversation context
	for _, p := range tool.Definition.Parameters {
		if p.Scope != ScopeContext {
			continue
		}
		value, ok := a.context.Get(p.Name)
		if !ok {
			if p.Required {
				return fmt.Sprintf("Error: context variable %q is not set; ask the user or set it first", p.Name)
			}
			continue
		}
		normalized[p.Name] = value
	}

	result, err := tool.Handler(ctx, normalized)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return result
}

func (a *Adapter) executeRemote(ctx context.Context, binding mcpBinding, args map[string]any) string {
	expected := make([]string, 0, len(binding.paramTypes))
	for name := range binding.paramTypes {
		expected = append(expected, name)
	}
	sort.Strings(expected)
	required := make(map[string]bool)
	for _, name := range binding.schema.Required {
		required[name] = true
	}

	normalized, err := NormalizeKeys(args, expected, required, a.norm)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	for name, value := range normalized {
		normalized[name] = ConvertValue(value, binding.paramTypes[name])
	}

	text, isError, err := a.caller.CallTool(ctx, binding.server, binding.tool, normalized)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if isError {
		return fmt.Sprintf("Error: %s", text)
	}
	return text
}

// ConsumePendingQuickReplies reads and removes the quick replies a tool
// stashed during the turn. A second call yields nil.
func (a *Adapter) ConsumePendingQuickReplies() []QuickReply {
	raw, ok := a.context.Get(PendingQuickRepliesKey)
	if !ok {
		return nil
	}
	a.context.Drop(PendingQuickRepliesKey)

	replies := decodeQuickReplies(raw)
	if len(replies) == 0 {
		return nil
	}
	return replies
}

// decodeQuickReplies parses the stored payload. Entries may be full
// objects or bare strings (label doubles as value).
func decodeQuickReplies(raw string) []QuickReply {
	var replies []QuickReply
	if err := json.Unmarshal([]byte(raw), &replies); err == nil {
		return fillQuickReplyDefaults(replies)
	}

	var loose []any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil
	}
	for _, entry := range loose {
		switch v := entry.(type) {
		case string:
			replies = append(replies, QuickReply{Label: v})
		case map[string]any:
			qr := QuickReply{}
			if s, ok := v["id"].(string); ok {
				qr.ID = s
			}
			if s, ok := v["label"].(string); ok {
				qr.Label = s
			}
			if s, ok := v["value"].(string); ok {
				qr.Value = s
			}
			if b, ok := v["terminal"].(bool); ok {
				qr.Terminal = b
			}
			replies = append(replies, qr)
		}
	}
	return fillQuickReplyDefaults(replies)
}

// fillQuickReplyDefaults drops entries without a label and fills in a
// positional id and a value equal to the label where they are missing.
// Both decode paths go through here so a well-formed payload and a loose
// one end up with the same shape.
func fillQuickReplyDefaults(replies []QuickReply) []QuickReply {
	var out []QuickReply
	for _, qr := range replies {
		if qr.Label == "" {
			continue
		}
		if qr.ID == "" {
			qr.ID = fmt.Sprintf("qr-%d", len(out)+1)
		}
		if qr.Value == "" {
			qr.Value = qr.Label
		}
		out = append(out, qr)
	}
	return out
}
