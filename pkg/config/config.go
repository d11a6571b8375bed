package config

// Config is the umbrella configuration object that encapsulates
// all registries, settings, and configuration state.
// This is the primary object returned by Initialize() and used throughout the application.
type Config struct {
	configFile string // Configuration file path (for reference)

	Server        ServerConfig
	Runtime       RuntimeConfig
	Guard         GuardConfig
	Normalization NormalizationConfig
	Push          PushConfig
	Store         StoreConfig

	// Component registries
	IntentRegistry      *IntentRegistry
	PromptRegistry      *PromptRegistry
	MCPServerRegistry   *MCPServerRegistry
	LLMProviderRegistry *LLMProviderRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Intents      int
	Prompts      int
	MCPServers   int
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.IntentRegistry != nil {
		s.Intents = c.IntentRegistry.Len()
	}
	if c.PromptRegistry != nil {
		s.Prompts = c.PromptRegistry.Len()
	}
	if c.MCPServerRegistry != nil {
		s.MCPServers = c.MCPServerRegistry.Len()
	}
	if c.LLMProviderRegistry != nil {
		s.LLMProviders = c.LLMProviderRegistry.Len()
	}
	return s
}

// ConfigFile returns the configuration file path
func (c *Config) ConfigFile() string {
	return c.configFile
}

// GetIntent retrieves an intent configuration by name.
// This is a convenience method that wraps IntentRegistry.Get().
func (c *Config) GetIntent(name string) (*IntentConfig, error) {
	return c.IntentRegistry.Get(name)
}

// GetPrompt retrieves a prompt template by name.
// This is a convenience method that wraps PromptRegistry.Get().
func (c *Config) GetPrompt(name string) (string, error) {
	return c.PromptRegistry.Get(name)
}

// GetMCPServer retrieves an MCP server configuration by name.
// This is a convenience method that wraps MCPServerRegistry.Get().
func (c *Config) GetMCPServer(name string) (*MCPServerConfig, error) {
	return c.MCPServerRegistry.Get(name)
}

// GetLLMProvider retrieves an LLM provider configuration by name.
// This is a convenience method that wraps LLMProviderRegistry.Get().
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
