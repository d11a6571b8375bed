package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// OtherIntent is the reserved fallback intent for unclassifiable messages
const OtherIntent = "other"

// IntentConfig defines one routable intent: how the classifier describes
// it, how presentation renders it, and how its agent is built.
type IntentConfig struct {
	// Intent name, unique, matched case-insensitively (required)
	Name string `yaml:"name"`

	// Description shown to the classifier LLM (required)
	Description string `yaml:"description"`

	// Quick-reply label and value for the presentation message
	Label        string `yaml:"label,omitempty"`
	DefaultValue string `yaml:"default_value,omitempty"`

	// Agent system prompt appended to the shared preamble (required)
	Prompt string `yaml:"prompt"`

	// Context variable names replicated to other agents on write
	SharedVars []string `yaml:"shared_vars,omitempty"`

	// MCP server names whose tools this intent's agent binds
	MCPServers []string `yaml:"mcp_servers,omitempty"`
}

// IntentRegistry stores intent configurations in memory with thread-safe access.
// Lookup is case-insensitive, matching the classifier contract.
type IntentRegistry struct {
	intents map[string]*IntentConfig // keyed by lowercase name
	mu      sync.RWMutex
}

// NewIntentRegistry creates a new intent registry
func NewIntentRegistry(intents []IntentConfig) *IntentRegistry {
	m := make(map[string]*IntentConfig, len(intents))
	for i := range intents {
		ic := intents[i]
		m[strings.ToLower(ic.Name)] = &ic
	}
	return &IntentRegistry{intents: m}
}

// Get retrieves an intent configuration by name (thread-safe, case-insensitive)
func (r *IntentRegistry) Get(name string) (*IntentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	intent, exists := r.intents[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, name)
	}
	return intent, nil
}

// Has checks if an intent exists in the registry (thread-safe, case-insensitive)
func (r *IntentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.intents[strings.ToLower(name)]
	return exists
}

// Names returns a sorted list of registered intent names (canonical casing)
func (r *IntentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.intents))
	for _, ic := range r.intents {
		names = append(names, ic.Name)
	}
	sort.Strings(names)
	return names
}

// GetAll returns all intent configurations sorted by name (thread-safe, returns copy)
func (r *IntentRegistry) GetAll() []*IntentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*IntentConfig, 0, len(r.intents))
	for _, ic := range r.intents {
		result = append(result, ic)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Len returns the number of intents in the registry (thread-safe)
func (r *IntentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}
