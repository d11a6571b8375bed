package config

import (
	"errors"
	"fmt"
	"strings"
)

// validate checks the fully-built configuration for consistency.
// All failures are collected so one run reports every problem.
func validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateRuntime(&cfg.Runtime)...)
	errs = append(errs, validateNormalization(&cfg.Normalization)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateLLMProviders(cfg.LLMProviderRegistry)...)
	errs = append(errs, validateIntents(cfg.IntentRegistry, cfg.MCPServerRegistry)...)
	errs = append(errs, validatePrompts(cfg.PromptRegistry)...)
	errs = append(errs, validateMCPServers(cfg.MCPServerRegistry)...)
	errs = append(errs, validateGuard(&cfg.Guard)...)

	return errors.Join(errs...)
}

func validateRuntime(r *RuntimeConfig) []error {
	var errs []error
	if r.IdleTimeoutSeconds < 0 {
		errs = append(errs, NewValidationError("runtime", "runtime", "idle_timeout_seconds", ErrInvalidValue))
	}
	if r.TurnTimeoutSeconds <= 0 {
		errs = append(errs, NewValidationError("runtime", "runtime", "turn_timeout_seconds", ErrInvalidValue))
	}
	if r.InteractiveToken == "" {
		errs = append(errs, NewValidationError("runtime", "runtime", "interactive_token", ErrMissingRequiredField))
	}
	if r.MailboxSize <= 0 {
		errs = append(errs, NewValidationError("runtime", "runtime", "mailbox_size", ErrInvalidValue))
	}
	return errs
}

func validateNormalization(n *NormalizationConfig) []error {
	var errs []error
	if n.MinSubstringLength < 1 {
		errs = append(errs, NewValidationError("normalization", "normalization", "min_substring_length", ErrInvalidValue))
	}
	if n.SimilarityRatio <= 0 || n.SimilarityRatio > 1 {
		errs = append(errs, NewValidationError("normalization", "normalization", "similarity_ratio", ErrInvalidValue))
	}
	return errs
}

func validateStore(s *StoreConfig) []error {
	if err := s.Driver.Validate(); err != nil {
		return []error{NewValidationError("store", "store", "driver", err)}
	}
	return nil
}

func validateLLMProviders(reg *LLMProviderRegistry) []error {
	var errs []error

	if reg.Len() == 0 {
		errs = append(errs, NewValidationError("llm", "llm", "providers", ErrMissingRequiredField))
		return errs
	}
	if reg.DefaultName() == "" {
		errs = append(errs, NewValidationError("llm", "llm", "default_provider", ErrMissingRequiredField))
	} else if !reg.Has(reg.DefaultName()) {
		errs = append(errs, NewValidationError("llm", reg.DefaultName(), "default_provider",
			fmt.Errorf("%w: not in providers", ErrLLMProviderNotFound)))
	}

	for name, provider := range reg.GetAll() {
		if err := provider.Backend.Validate(); err != nil {
			errs = append(errs, NewValidationError("llm_provider", name, "backend", err))
		}
		if provider.Model == "" {
			errs = append(errs, NewValidationError("llm_provider", name, "model", ErrMissingRequiredField))
		}
		if provider.APIKeyEnv == "" {
			errs = append(errs, NewValidationError("llm_provider", name, "api_key_env", ErrMissingRequiredField))
		}
	}
	return errs
}

func validateIntents(reg *IntentRegistry, mcpReg *MCPServerRegistry) []error {
	var errs []error

	for _, intent := range reg.GetAll() {
		if intent.Name == "" {
			errs = append(errs, NewValidationError("intent", "(unnamed)", "name", ErrMissingRequiredField))
			continue
		}
		if intent.Description == "" {
			errs = append(errs, NewValidationError("intent", intent.Name, "description", ErrMissingRequiredField))
		}
		if intent.Prompt == "" {
			errs = append(errs, NewValidationError("intent", intent.Name, "prompt", ErrMissingRequiredField))
		}
		for _, server := range intent.MCPServers {
			if !mcpReg.Has(server) {
				errs = append(errs, NewValidationError("intent", intent.Name, "mcp_servers",
					fmt.Errorf("%w: %s", ErrMCPServerNotFound, server)))
			}
		}
	}
	return errs
}

func validatePrompts(reg *PromptRegistry) []error {
	var errs []error
	for _, name := range []string{PromptMorgana, PromptClassifier, PromptGuard, PromptPresentation, PromptSummarizer} {
		if !reg.Has(name) {
			errs = append(errs, NewValidationError("prompt", name, "", ErrMissingRequiredField))
		}
	}
	return errs
}

func validateMCPServers(reg *MCPServerRegistry) []error {
	var errs []error

	for name, server := range reg.GetAll() {
		t := &server.Transport
		if err := t.Type.Validate(); err != nil {
			errs = append(errs, NewValidationError("mcp_server", name, "transport.type", err))
			continue
		}
		switch t.Type {
		case TransportStdio:
			if t.Command == "" {
				errs = append(errs, NewValidationError("mcp_server", name, "transport.command", ErrMissingRequiredField))
			}
		case TransportHTTP, TransportSSE:
			if t.URL == "" {
				errs = append(errs, NewValidationError("mcp_server", name, "transport.url", ErrMissingRequiredField))
			}
		}
	}
	return errs
}

func validateGuard(g *GuardConfig) []error {
	var errs []error
	for i, term := range g.ProfanityTerms {
		if strings.TrimSpace(term.Term) == "" {
			errs = append(errs, NewValidationError("guard", fmt.Sprintf("profanity_terms[%d]", i), "term", ErrMissingRequiredField))
		}
	}
	return errs
}
