package config

import "time"

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	HTTPPort               int `yaml:"http_port"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// ShutdownTimeout returns the shutdown timeout as a duration
func (s *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// RuntimeConfig holds conversation runtime settings
type RuntimeConfig struct {
	// Idle conversation teardown, resettable on each user turn
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// End-to-end wall-clock budget for one turn
	TurnTimeoutSeconds int `yaml:"turn_timeout_seconds"`

	// Sentinel string the LLM emits to signal "I need another turn"
	InteractiveToken string `yaml:"interactive_token"`

	// Keep the interactive token in user-visible text (debug builds only)
	DebugKeepToken bool `yaml:"debug_keep_token"`

	// Per-agent chat history token budget before summarization kicks in
	HistoryTokenBudget int `yaml:"history_token_budget"`

	// Buffered mailbox capacity for Manager and Supervisor loops
	MailboxSize int `yaml:"mailbox_size"`
}

// IdleTimeout returns the idle timeout as a duration
func (r *RuntimeConfig) IdleTimeout() time.Duration {
	return time.Duration(r.IdleTimeoutSeconds) * time.Second
}

// TurnTimeout returns the turn timeout as a duration
func (r *RuntimeConfig) TurnTimeout() time.Duration {
	return time.Duration(r.TurnTimeoutSeconds) * time.Second
}

// TransportConfig defines MCP server transport configuration
type TransportConfig struct {
	Type TransportType `yaml:"type"`

	// For stdio transport
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"` // Environment overrides for stdio subprocess

	// For http/sse transport
	URL            string `yaml:"url,omitempty"`
	BearerToken    string `yaml:"bearer_token,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Timeout returns the transport timeout as a duration (0 means no limit)
func (t *TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ProfanityTerm is one entry of the deterministic banned-term list.
// Matching is case-insensitive substring; Category surfaces in the
// guard-violation response.
type ProfanityTerm struct {
	Term     string `yaml:"term"`
	Category string `yaml:"category,omitempty"`
}

// PolicyConfig is one ordered entry of the LLM policy check
type PolicyConfig struct {
	Type     string `yaml:"type"`
	Priority int    `yaml:"priority"`
}

// GuardConfig holds both moderation stages
type GuardConfig struct {
	ProfanityTerms []ProfanityTerm `yaml:"profanity_terms,omitempty"`
	Policies       []PolicyConfig  `yaml:"policies,omitempty"`
}

// NormalizationConfig tunes tool parameter-key matching
type NormalizationConfig struct {
	// Minimum key length for substring matching to apply
	MinSubstringLength int `yaml:"min_substring_length"`

	// Minimum matched/expected length ratio for a substring match
	SimilarityRatio float64 `yaml:"similarity_ratio"`
}

// PushConfig holds WebSocket push hub settings
type PushConfig struct {
	WriteTimeoutSeconds        int `yaml:"write_timeout_seconds"`
	MaxReconnectBackoffSeconds int `yaml:"max_reconnect_backoff_seconds"`
}

// WriteTimeout returns the per-send write timeout as a duration
func (p *PushConfig) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutSeconds) * time.Second
}

// StoreConfig selects the persistence backend. The postgres DSN comes
// from the DATABASE_URL environment variable, never from YAML.
type StoreConfig struct {
	Driver StoreDriver `yaml:"driver"`
}
