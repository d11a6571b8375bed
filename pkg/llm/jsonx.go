package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeLenient parses JSON out of raw LLM output. Models wrap JSON in
// code fences or surround it with prose; this tries strict parsing first,
// then strips markdown fences, then falls back to the outermost brace pair.
// Callers supply their own defaults when every attempt fails.
func DecodeLenient(text string, target any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty LLM output")
	}

	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	stripped := stripCodeFences(trimmed)
	if err := json.Unmarshal([]byte(stripped), target); err == nil {
		return nil
	}

	start := strings.Index(stripped, "{")
	end := strings.LastIndex(stripped, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(stripped[start:end+1]), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no valid JSON in LLM output")
}

// stripCodeFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag line ("json", "yaml", ...)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.ContainsAny(first, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
