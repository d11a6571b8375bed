package config

// Built-in defaults applied when morgana.yaml omits a field
const (
	DefaultHTTPPort               = 8080
	DefaultShutdownTimeoutSeconds = 15

	DefaultIdleTimeoutSeconds = 900
	DefaultTurnTimeoutSeconds = 60
	DefaultInteractiveToken   = "#INT#"
	DefaultHistoryTokenBudget = 3000
	DefaultMailboxSize        = 64

	DefaultMinSubstringLength = 4
	DefaultSimilarityRatio    = 0.3

	DefaultPushWriteTimeoutSeconds    = 10
	DefaultMaxReconnectBackoffSeconds = 30
	DefaultMCPTransportTimeoutSeconds = 30
	DefaultLLMMaxTokens               = 4096
	DefaultLLMMaxIterations           = 10
)

func applyServerDefaults(s *ServerConfig) {
	if s.HTTPPort == 0 {
		s.HTTPPort = DefaultHTTPPort
	}
	if s.ShutdownTimeoutSeconds == 0 {
		s.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
}

func applyRuntimeDefaults(r *RuntimeConfig) {
	if r.IdleTimeoutSeconds == 0 {
		r.IdleTimeoutSeconds = DefaultIdleTimeoutSeconds
	}
	if r.TurnTimeoutSeconds == 0 {
		r.TurnTimeoutSeconds = DefaultTurnTimeoutSeconds
	}
	if r.InteractiveToken == "" {
		r.InteractiveToken = DefaultInteractiveToken
	}
	if r.HistoryTokenBudget == 0 {
		r.HistoryTokenBudget = DefaultHistoryTokenBudget
	}
	if r.MailboxSize == 0 {
		r.MailboxSize = DefaultMailboxSize
	}
}

func applyNormalizationDefaults(n *NormalizationConfig) {
	if n.MinSubstringLength == 0 {
		n.MinSubstringLength = DefaultMinSubstringLength
	}
	if n.SimilarityRatio == 0 {
		n.SimilarityRatio = DefaultSimilarityRatio
	}
}

func applyPushDefaults(p *PushConfig) {
	if p.WriteTimeoutSeconds == 0 {
		p.WriteTimeoutSeconds = DefaultPushWriteTimeoutSeconds
	}
	if p.MaxReconnectBackoffSeconds == 0 {
		p.MaxReconnectBackoffSeconds = DefaultMaxReconnectBackoffSeconds
	}
}

func applyStoreDefaults(s *StoreConfig) {
	if s.Driver == "" {
		s.Driver = StoreMemory
	}
}

func applyMCPDefaults(servers map[string]*MCPServerConfig) {
	for _, server := range servers {
		if server.Transport.Type != TransportStdio && server.Transport.TimeoutSeconds == 0 {
			server.Transport.TimeoutSeconds = DefaultMCPTransportTimeoutSeconds
		}
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	for name, provider := range cfg.Providers {
		if provider.MaxTokens == 0 {
			provider.MaxTokens = DefaultLLMMaxTokens
		}
		if provider.MaxIterations == 0 {
			provider.MaxIterations = DefaultLLMMaxIterations
		}
		cfg.Providers[name] = provider
	}
	if cfg.DefaultProvider == "" && len(cfg.Providers) == 1 {
		for name := range cfg.Providers {
			cfg.DefaultProvider = name
		}
	}
}
