package config

import "fmt"

// TransportType identifies the MCP transport mechanism
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
)

// Validate checks if the transport type is valid
func (t TransportType) Validate() error {
	switch t {
	case TransportStdio, TransportHTTP, TransportSSE:
		return nil
	default:
		return fmt.Errorf("%w: transport type '%s' (must be stdio, http, or sse)", ErrInvalidValue, t)
	}
}

// LLMBackend identifies the LLM provider SDK used for a provider entry
type LLMBackend string

const (
	BackendOpenAI    LLMBackend = "openai"
	BackendAnthropic LLMBackend = "anthropic"
)

// Validate checks if the backend is valid
func (b LLMBackend) Validate() error {
	switch b {
	case BackendOpenAI, BackendAnthropic:
		return nil
	default:
		return fmt.Errorf("%w: llm backend '%s' (must be openai or anthropic)", ErrInvalidValue, b)
	}
}

// StoreDriver identifies the persistence backend
type StoreDriver string

const (
	StorePostgres StoreDriver = "postgres"
	StoreMemory   StoreDriver = "memory"
)

// Validate checks if the store driver is valid
func (d StoreDriver) Validate() error {
	switch d {
	case StorePostgres, StoreMemory:
		return nil
	default:
		return fmt.Errorf("%w: store driver '%s' (must be postgres or memory)", ErrInvalidValue, d)
	}
}
