package config

import (
	"fmt"
	"sync"
)

// LLMConfig is the llm section of morgana.yaml
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig defines LLM provider configuration
type LLMProviderConfig struct {
	// Provider SDK to use (required)
	Backend LLMBackend `yaml:"backend"`

	// Model name (required)
	Model string `yaml:"model"`

	// Environment variable name for the API key (required)
	APIKeyEnv string `yaml:"api_key_env"`

	// Optional custom endpoint/base URL
	BaseURL string `yaml:"base_url,omitempty"`

	// Sampling temperature; nil means provider default
	Temperature *float64 `yaml:"temperature,omitempty"`

	// Response token cap; 0 means the built-in default
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Tool-calling loop iteration cap; 0 means the built-in default
	MaxIterations int `yaml:"max_iterations,omitempty"`
}

// LLMProviderRegistry stores LLM provider configurations in memory with thread-safe access
type LLMProviderRegistry struct {
	providers       map[string]*LLMProviderConfig
	defaultProvider string
	mu              sync.RWMutex
}

// NewLLMProviderRegistry creates a new LLM provider registry
func NewLLMProviderRegistry(cfg LLMConfig) *LLMProviderRegistry {
	copied := make(map[string]*LLMProviderConfig, len(cfg.Providers))
	for k := range cfg.Providers {
		pc := cfg.Providers[k]
		copied[k] = &pc
	}
	return &LLMProviderRegistry{
		providers:       copied,
		defaultProvider: cfg.DefaultProvider,
	}
}

// Get retrieves an LLM provider configuration by name (thread-safe)
func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return provider, nil
}

// Default returns the configured default provider
func (r *LLMProviderRegistry) Default() (*LLMProviderConfig, error) {
	return r.Get(r.DefaultName())
}

// DefaultName returns the configured default provider name
func (r *LLMProviderRegistry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultProvider
}

// GetAll returns all LLM provider configurations (thread-safe, returns copy)
func (r *LLMProviderRegistry) GetAll() map[string]*LLMProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*LLMProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if an LLM provider exists in the registry (thread-safe)
func (r *LLMProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[name]
	return exists
}

// Len returns the number of LLM providers in the registry (thread-safe)
func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
