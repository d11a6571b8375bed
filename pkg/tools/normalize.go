package tools

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/morgana-runtime/morgana/pkg/config"
)

var (
	// ErrMissingParameter indicates a required parameter had no match
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrAmbiguousParameter indicates several supplied keys matched one parameter
	ErrAmbiguousParameter = errors.New("ambiguous parameter match")
)

// NormalizeKeys maps LLM-supplied argument keys onto the expected
// parameter names. LLMs misspell keys in predictable ways (wrong casing,
// snake_case for camelCase, dropped underscores, shortened names), so
// matching cascades per expected key:
//
//	exact → case-insensitive → snake/camel transform →
//	underscore-stripped case-insensitive → single significant substring
//
// The substring stage requires the matched key to be at least
// MinSubstringLength runes and at least SimilarityRatio of the expected
// key's length; more than one such candidate is an error. Each supplied
// key is consumed at most once. Keys matching nothing are dropped.
// Normalization is idempotent: canonical input maps to itself.
func NormalizeKeys(args map[string]any, expected []string, required map[string]bool, cfg config.NormalizationConfig) (map[string]any, error) {
	result := make(map[string]any, len(expected))
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	type matcher func(supplied, expected string) bool
	stages := []matcher{
		func(s, e string) bool { return s == e },
		strings.EqualFold,
		func(s, e string) bool { return toSnake(s) == toSnake(e) },
		func(s, e string) bool {
			return strings.EqualFold(stripUnderscores(s), stripUnderscores(e))
		},
	}

	for _, exp := range expected {
		matched := false
		for _, stage := range stages {
			for key, value := range remaining {
				if stage(key, exp) {
					result[exp] = value
					delete(remaining, key)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			continue
		}

		// Last resort: substring similarity
		var candidates []string
		for key := range remaining {
			if substringMatch(key, exp, cfg) {
				candidates = append(candidates, key)
			}
		}
		switch len(candidates) {
		case 0:
			if required[exp] {
				return nil, fmt.Errorf("%w: %s", ErrMissingParameter, exp)
			}
		case 1:
			result[exp] = remaining[candidates[0]]
			delete(remaining, candidates[0])
		default:
			return nil, fmt.Errorf("%w: %s matched by %s", ErrAmbiguousParameter, exp, strings.Join(candidates, ", "))
		}
	}

	return result, nil
}

// substringMatch reports whether a supplied key plausibly abbreviates or
// extends the expected key.
func substringMatch(supplied, expected string, cfg config.NormalizationConfig) bool {
	s := strings.ToLower(stripUnderscores(supplied))
	e := strings.ToLower(stripUnderscores(expected))
	if len(s) < cfg.MinSubstringLength {
		return false
	}
	if !strings.Contains(e, s) && !strings.Contains(s, e) {
		return false
	}
	shorter, longer := s, e
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return float64(len(shorter))/float64(len(longer)) >= cfg.SimilarityRatio
}

// toSnake converts camelCase to snake_case; snake_case passes through.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripUnderscores(s string) string {
	return strings.ReplaceAll(s, "_", "")
}
