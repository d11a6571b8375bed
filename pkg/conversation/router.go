package conversation

import (
	"context"
	"log/slog"
	"strings"
)

// Router resolves classified intents to agent instances for one
// conversation. Agents are created on demand and cached for the
// conversation's lifetime (bounded by the intent count, no eviction).
// The router also fans shared-context broadcasts out to every cached
// agent except the source.
//
// A router is owned by its supervisor and only touched from the
// supervisor's serial dispatch.
type Router struct {
	conversationID string
	deps           *Deps

	agents map[string]*Agent // keyed by lowercase intent

	// accumulated holds every shared-context update seen so far, so
	// agents created later still observe earlier broadcasts.
	accumulated map[string]string

	logger *slog.Logger
}

// NewRouter creates a router for one conversation.
func NewRouter(conversationID string, deps *Deps) *Router {
	return &Router{
		conversationID: conversationID,
		deps:           deps,
		agents:         make(map[string]*Agent),
		accumulated:    make(map[string]string),
		logger: slog.With("component", "router",
			"conversation_id", conversationID),
	}
}

// Route resolves the classification to an agent and forwards the turn.
// found is false when no agent can serve the intent; the supervisor turns
// that into a capability-unknown response and leaves the active-agent
// slot untouched.
func (r *Router) Route(ctx context.Context, turn *Turn, c Classification) (resp *AgentResponse, agentName string, found bool) {
	agent, ok := r.resolve(c.Intent)
	if !ok {
		r.logger.Info("No agent for intent", "intent", c.Intent)
		return nil, "", false
	}
	return agent.Handle(ctx, turn), agent.Intent(), true
}

// Cached returns the agent instance for an intent, if one exists. Used by
// the supervisor's active-agent fast path, which must never create agents.
func (r *Router) Cached(intent string) (*Agent, bool) {
	agent, ok := r.agents[strings.ToLower(intent)]
	return agent, ok
}

// resolve returns the cached agent for an intent, constructing one on
// first use. Intents absent from the registry cannot be served.
func (r *Router) resolve(intent string) (*Agent, bool) {
	key := strings.ToLower(intent)
	if agent, ok := r.agents[key]; ok {
		return agent, true
	}

	intentCfg, err := r.deps.Config.IntentRegistry.Get(key)
	if err != nil {
		return nil, false
	}

	agent := newAgent(r.conversationID, intentCfg, r.deps, r.Broadcast)
	// Seed the newcomer with everything broadcast before it existed
	if len(r.accumulated) > 0 {
		agent.ReceiveContextUpdate("", r.accumulated)
	}
	r.agents[key] = agent
	r.logger.Info("Agent created", "intent", key, "cached_agents", len(r.agents))
	return agent, true
}

// Broadcast delivers a shared-context update to every cached agent except
// the source. Called synchronously from the source agent's tool execution.
func (r *Router) Broadcast(sourceIntent string, updates map[string]string) {
	if len(updates) == 0 {
		return
	}
	for k, v := range updates {
		if _, exists := r.accumulated[k]; !exists {
			r.accumulated[k] = v
		}
	}
	for intent, agent := range r.agents {
		if intent == strings.ToLower(sourceIntent) {
			continue
		}
		agent.ReceiveContextUpdate(sourceIntent, updates)
	}
}

// AgentCount returns the number of cached agents.
func (r *Router) AgentCount() int {
	return len(r.agents)
}
