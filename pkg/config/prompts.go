package config

import (
	"fmt"
	"sync"
)

// Well-known prompt names used by the pipeline components
const (
	PromptMorgana      = "morgana"      // shared agent preamble
	PromptClassifier   = "classifier"   // intent classification
	PromptGuard        = "guard"        // LLM policy check
	PromptPresentation = "presentation" // conversation-open greeting
	PromptSummarizer   = "summarizer"   // chat history folding
)

// PromptsYAML is the prompts section of morgana.yaml
type PromptsYAML struct {
	Morgana      string `yaml:"morgana"`
	Classifier   string `yaml:"classifier"`
	Guard        string `yaml:"guard"`
	Presentation string `yaml:"presentation"`
	Summarizer   string `yaml:"summarizer"`
}

// PromptRegistry stores prompt templates in memory with thread-safe access.
// Per-intent prompts live on IntentConfig; this registry holds the
// pipeline-level templates.
type PromptRegistry struct {
	prompts map[string]string
	mu      sync.RWMutex
}

// NewPromptRegistry creates a new prompt registry from the YAML section
func NewPromptRegistry(p PromptsYAML) *PromptRegistry {
	return &PromptRegistry{
		prompts: map[string]string{
			PromptMorgana:      p.Morgana,
			PromptClassifier:   p.Classifier,
			PromptGuard:        p.Guard,
			PromptPresentation: p.Presentation,
			PromptSummarizer:   p.Summarizer,
		},
	}
}

// Get retrieves a prompt template by name (thread-safe)
func (r *PromptRegistry) Get(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prompt, exists := r.prompts[name]
	if !exists || prompt == "" {
		return "", fmt.Errorf("%w: %s", ErrPromptNotFound, name)
	}
	return prompt, nil
}

// MustGet retrieves a prompt that validation has already guaranteed to exist.
// Panics on a missing prompt; only reachable through a registry that skipped
// validation.
func (r *PromptRegistry) MustGet(name string) string {
	prompt, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return prompt
}

// Has checks if a non-empty prompt exists in the registry (thread-safe)
func (r *PromptRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prompt, exists := r.prompts[name]
	return exists && prompt != ""
}

// Len returns the number of non-empty prompts in the registry (thread-safe)
func (r *PromptRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.prompts {
		if p != "" {
			n++
		}
	}
	return n
}
