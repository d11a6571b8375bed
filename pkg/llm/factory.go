package llm

import (
	"fmt"
	"os"

	"github.com/morgana-runtime/morgana/pkg/config"
)

// NewClient builds a ChatClient for the given provider configuration.
// The API key is read from the environment variable named in the config.
func NewClient(cfg *config.LLMProviderConfig) (ChatClient, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("environment variable %s is empty", cfg.APIKeyEnv)
	}

	switch cfg.Backend {
	case config.BackendOpenAI:
		return NewOpenAIClient(apiKey, cfg), nil
	case config.BackendAnthropic:
		return NewAnthropicClient(apiKey, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", cfg.Backend)
	}
}
