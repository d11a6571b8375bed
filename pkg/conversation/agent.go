package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/metrics"
	"github.com/morgana-runtime/morgana/pkg/tools"
)

// defaultMaxIterations caps the tool-calling loop when the provider
// config does not set one.
const defaultMaxIterations = 10

// Agent is one intent's LLM-driven responder within a conversation. It
// owns its context provider, chat history, and tool adapter; the router
// owns the agent. All calls happen on the supervisor's serial dispatch.
type Agent struct {
	conversationID string
	intent         string
	intentCfg      *config.IntentConfig
	runtime        config.RuntimeConfig

	deps      *Deps
	provider  *ContextProvider
	history   *ChatHistory
	adapter   *tools.Adapter
	runner    *llm.Runner
	sysPrompt string

	// broadcast sends shared-context updates toward the router, which
	// fans them out to the conversation's other agents.
	broadcast func(sourceIntent string, updates map[string]string)

	initialized bool
	logger      *slog.Logger
}

// newAgent constructs an agent shell. The LLM session, tool adapter, and
// MCP bindings are built lazily on the first turn; construction itself
// never touches the network.
func newAgent(conversationID string, intentCfg *config.IntentConfig, deps *Deps, broadcast func(string, map[string]string)) *Agent {
	toolset := deps.Agents.Toolset(intentCfg.Name)

	sharedVars := make([]string, 0, len(intentCfg.SharedVars)+len(toolset.SharedVars))
	sharedVars = append(sharedVars, intentCfg.SharedVars...)
	sharedVars = append(sharedVars, toolset.SharedVars...)

	provider := NewContextProvider(sharedVars)
	intent := strings.ToLower(intentCfg.Name)

	a := &Agent{
		conversationID: conversationID,
		intent:         intent,
		intentCfg:      intentCfg,
		runtime:        deps.Config.Runtime,
		deps:           deps,
		provider:       provider,
		broadcast:      broadcast,
		logger: slog.With("component", "agent",
			"conversation_id", conversationID, "intent", intent),
	}

	provider.SetBroadcastHook(func(key, value string) {
		if a.broadcast != nil {
			a.broadcast(a.intent, map[string]string{key: value})
		}
	})

	a.adapter = tools.NewAdapter(provider, deps.Config.Normalization)
	if err := tools.RegisterBaseTools(a.adapter); err != nil {
		// Only reachable with a broken base-tool schema, a programming error
		a.logger.Error("Failed to register base tools", "error", err)
	}
	for _, tool := range toolset.Tools {
		if err := a.adapter.RegisterLocal(tool); err != nil {
			a.logger.Error("Failed to register intent tool",
				"tool", tool.Definition.Name, "error", err)
		}
	}

	return a
}

// Intent returns the lowercase intent name this agent serves.
func (a *Agent) Intent() string {
	return a.intent
}

// ensureInitialized performs the once-per-agent setup that needs a
// context: binding remote MCP tools and assembling the system prompt.
func (a *Agent) ensureInitialized(ctx context.Context) {
	if a.initialized {
		return
	}
	a.initialized = true

	if len(a.intentCfg.MCPServers) > 0 && a.deps.MCP != nil {
		a.adapter.BindMCPServers(ctx, a.deps.MCP, a.intentCfg.MCPServers)
	}

	preamble, err := a.deps.Config.PromptRegistry.Get(config.PromptMorgana)
	if err != nil {
		preamble = ""
	}
	a.sysPrompt = strings.TrimSpace(preamble + "\n\n" + a.intentCfg.Prompt)

	maxIterations := defaultMaxIterations
	if provider, err := a.deps.Config.LLMProviderRegistry.Default(); err == nil && provider.MaxIterations > 0 {
		maxIterations = provider.MaxIterations
	}
	a.runner = llm.NewRunner(a.deps.Chat, maxIterations)

	summarizer, err := a.deps.Config.PromptRegistry.Get(config.PromptSummarizer)
	if err != nil {
		summarizer = ""
	}
	a.history = NewChatHistory(a.runtime.HistoryTokenBudget, a.deps.Chat, summarizer)

	a.logger.Info("Agent initialized",
		"mcp_servers", a.intentCfg.MCPServers, "tools", len(a.adapter.Specs()))
}

// Handle processes one turn: run the tool-calling loop, interpret the
// response for completion, and strip the interactive token. Any failure
// becomes a templated error response with IsCompleted=true so the
// active-agent slot can never get stuck.
func (a *Agent) Handle(ctx context.Context, turn *Turn) *AgentResponse {
	a.ensureInitialized(ctx)

	a.history.Append(llm.RoleUser, turn.Text)

	messages := make([]llm.Message, 0, a.history.Len()+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.sysPrompt})
	messages = append(messages, a.history.Messages()...)

	result, err := a.runner.Run(ctx, messages, a.adapter.Specs(), a.meteredExecutor(), a.chunkSink())
	if err != nil {
		a.deps.Metrics.LLMCall("agent", false, 0, 0)
		a.logger.Error("Agent turn failed", "error", err)
		// Drop the pending quick replies a tool may have staged before the
		// failure; they belong to a response that will never be sent.
		a.adapter.ConsumePendingQuickReplies()
		return &AgentResponse{Text: genericErrorText, IsCompleted: true}
	}
	a.deps.Metrics.LLMCall("agent", true, result.Usage.InputTokens, result.Usage.OutputTokens)

	quickReplies := a.adapter.ConsumePendingQuickReplies()
	hasToken := containsFold(result.Text, a.runtime.InteractiveToken)

	text := result.Text
	if hasToken && !a.runtime.DebugKeepToken {
		text = stripTokenFold(text, a.runtime.InteractiveToken)
	}
	text = strings.TrimSpace(text)

	endsWithQuestion := strings.HasSuffix(text, "?")
	completed := !hasToken && !endsWithQuestion && len(quickReplies) == 0

	a.history.Append(llm.RoleAssistant, text)
	a.history.CompactIfNeeded(ctx)

	return &AgentResponse{Text: text, IsCompleted: completed, QuickReplies: quickReplies}
}

// ReceiveContextUpdate merges an inbound broadcast from another agent.
// First-write-wins: values this agent already holds are kept.
func (a *Agent) ReceiveContextUpdate(sourceIntent string, updates map[string]string) {
	a.provider.MergeShared(updates)
	a.logger.Debug("Merged shared context update",
		"source", sourceIntent, "keys", len(updates))
}

// chunkSink forwards streamed text deltas to the push bridge as they
// arrive. Tool-call and usage chunks stay internal.
func (a *Agent) chunkSink() llm.ChunkSink {
	if a.deps.Bridge == nil {
		return nil
	}
	return func(c llm.Chunk) {
		if tc, ok := c.(*llm.TextChunk); ok && tc.Content != "" {
			a.deps.Bridge.SendStreamChunk(a.conversationID, tc.Content)
			a.deps.Metrics.StreamChunk()
		}
	}
}

// meteredExecutor wraps the adapter with per-tool metrics.
func (a *Agent) meteredExecutor() llm.ToolExecutor {
	return &meteredExecutor{adapter: a.adapter, metrics: a.deps.Metrics}
}

type meteredExecutor struct {
	adapter *tools.Adapter
	metrics *metrics.Recorder
}

func (e *meteredExecutor) Execute(ctx context.Context, call llm.ToolCall) string {
	result := e.adapter.Execute(ctx, call)
	e.metrics.ToolCall(call.Name, !strings.HasPrefix(result, "Error:"))
	return result
}

// containsFold reports whether s contains token, case-insensitively.
func containsFold(s, token string) bool {
	if token == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(token))
}

// stripTokenFold removes every case-insensitive occurrence of token.
func stripTokenFold(s, token string) string {
	if token == "" {
		return s
	}
	lowered := strings.ToLower(s)
	needle := strings.ToLower(token)
	var b strings.Builder
	for {
		idx := strings.Index(lowered, needle)
		if idx < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:idx])
		s = s[idx+len(needle):]
		lowered = lowered[idx+len(needle):]
	}
}
