package conversation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/morgana-runtime/morgana/pkg/tools"
)

// Toolset is what an intent module contributes to its agent: domain tools
// and additional shared-eligible context variable names. Both are merged
// with the intent's YAML configuration at agent construction.
type Toolset struct {
	Tools      []tools.LocalTool
	SharedVars []string
}

// ToolsetFactory builds a fresh toolset for one agent instance. Called
// once per conversation per intent; handlers may close over per-agent
// state.
type ToolsetFactory func() Toolset

// AgentRegistry maps intent names to toolset factories. Intent modules
// register themselves at process start; the registry is read-only
// afterwards. This replaces attribute-driven reflection with explicit
// registration.
type AgentRegistry struct {
	mu        sync.RWMutex
	factories map[string]ToolsetFactory // keyed by lowercase intent
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{factories: make(map[string]ToolsetFactory)}
}

// Register adds a toolset factory for an intent. Registering the same
// intent twice is a wiring bug and fails loudly.
func (r *AgentRegistry) Register(intent string, factory ToolsetFactory) error {
	key := strings.ToLower(strings.TrimSpace(intent))
	if key == "" {
		return fmt.Errorf("intent name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for intent %q cannot be nil", intent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("intent %q is already registered", intent)
	}
	r.factories[key] = factory
	return nil
}

// Toolset builds the toolset for an intent. Intents without a registered
// module get an empty toolset; their agents run on base tools and MCP
// bindings alone.
func (r *AgentRegistry) Toolset(intent string) Toolset {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(intent)]
	r.mu.RUnlock()
	if !ok {
		return Toolset{}
	}
	return factory()
}

// Has reports whether an intent has a registered module.
func (r *AgentRegistry) Has(intent string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(intent)]
	return ok
}
