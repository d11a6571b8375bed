package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// MorganaYAMLConfig represents the complete morgana.yaml file structure
type MorganaYAMLConfig struct {
	Server        ServerConfig               `yaml:"server"`
	Runtime       RuntimeConfig              `yaml:"runtime"`
	LLM           LLMConfig                  `yaml:"llm"`
	Intents       []IntentConfig             `yaml:"intents"`
	Prompts       PromptsYAML                `yaml:"prompts"`
	Guard         GuardConfig                `yaml:"guard"`
	MCPServers    map[string]MCPServerConfig `yaml:"mcp_servers"`
	Normalization NormalizationConfig        `yaml:"normalization"`
	Push          PushConfig                 `yaml:"push"`
	Store         StoreConfig                `yaml:"store"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read the YAML file
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Apply default values
//  5. Build in-memory registries
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(_ context.Context, configFile string) (*Config, error) {
	log := slog.With("config_file", configFile)
	log.Info("Initializing configuration")

	cfg, err := load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"intents", stats.Intents,
		"prompts", stats.Prompts,
		"mcp_servers", stats.MCPServers,
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

func load(configFile string) (*Config, error) {
	var raw MorganaYAMLConfig
	raw.MCPServers = make(map[string]MCPServerConfig)

	if err := loadYAML(configFile, &raw); err != nil {
		return nil, &LoadError{File: configFile, Err: err}
	}

	applyServerDefaults(&raw.Server)
	applyRuntimeDefaults(&raw.Runtime)
	applyNormalizationDefaults(&raw.Normalization)
	applyPushDefaults(&raw.Push)
	applyStoreDefaults(&raw.Store)
	applyLLMDefaults(&raw.LLM)

	mcpServers := make(map[string]*MCPServerConfig, len(raw.MCPServers))
	for name := range raw.MCPServers {
		sc := raw.MCPServers[name]
		mcpServers[name] = &sc
	}
	applyMCPDefaults(mcpServers)

	return &Config{
		configFile:          configFile,
		Server:              raw.Server,
		Runtime:             raw.Runtime,
		Guard:               raw.Guard,
		Normalization:       raw.Normalization,
		Push:                raw.Push,
		Store:               raw.Store,
		IntentRegistry:      NewIntentRegistry(raw.Intents),
		PromptRegistry:      NewPromptRegistry(raw.Prompts),
		MCPServerRegistry:   NewMCPServerRegistry(mcpServers),
		LLMProviderRegistry: NewLLMProviderRegistry(raw.LLM),
	}, nil
}

func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}
