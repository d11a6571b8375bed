package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("MORGANA_TEST_KEY", "sk-secret")
	t.Setenv("MORGANA_TEST_HOST", "db.local")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single variable",
			input:    "api_key: {{.MORGANA_TEST_KEY}}",
			expected: "api_key: sk-secret",
		},
		{
			name:     "multiple variables in one line",
			input:    "dsn: {{.MORGANA_TEST_HOST}}:{{.MORGANA_TEST_KEY}}",
			expected: "dsn: db.local:sk-secret",
		},
		{
			name:     "missing variable expands to empty",
			input:    "value: {{.MORGANA_TEST_DOES_NOT_EXIST}}",
			expected: "value: ",
		},
		{
			name:     "no template syntax passes through",
			input:    "plain: value",
			expected: "plain: value",
		},
		{
			name:     "dollar signs pass through untouched",
			input:    "term: $100 refund",
			expected: "term: $100 refund",
		},
		{
			name:     "malformed template returns original",
			input:    "broken: {{.UNCLOSED",
			expected: "broken: {{.UNCLOSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.expected, string(result))
		})
	}
}
