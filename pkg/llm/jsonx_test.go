package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLenient(t *testing.T) {
	type verdict struct {
		Compliant bool   `json:"compliant"`
		Violation string `json:"violation"`
	}

	tests := []struct {
		name    string
		input   string
		want    verdict
		wantErr bool
	}{
		{
			name:  "strict json",
			input: `{"compliant": true}`,
			want:  verdict{Compliant: true},
		},
		{
			name:  "fenced with language tag",
			input: "```json\n{\"compliant\": false, \"violation\": \"insult\"}\n```",
			want:  verdict{Compliant: false, Violation: "insult"},
		},
		{
			name:  "fenced without language tag",
			input: "```\n{\"compliant\": true}\n```",
			want:  verdict{Compliant: true},
		},
		{
			name:  "json surrounded by prose",
			input: "Sure, here is my verdict: {\"compliant\": true} Let me know if you need more.",
			want:  verdict{Compliant: true},
		},
		{
			name:    "no json at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verdict
			err := DecodeLenient(tt.input, &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureAlternation(t *testing.T) {
	t.Run("extracts system and merges tool results", func(t *testing.T) {
		system, merged, err := ensureAlternation([]Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "what color?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: "lookup", Arguments: "{}"}}},
			{Role: RoleTool, ToolName: "lookup", Content: "blue"},
		})
		require.NoError(t, err)
		assert.Equal(t, "be brief", system)
		require.Len(t, merged, 3)
		assert.Equal(t, RoleUser, merged[0].Role)
		assert.Equal(t, RoleAssistant, merged[1].Role)
		assert.Contains(t, merged[1].Content, "lookup")
		assert.Equal(t, RoleUser, merged[2].Role)
		assert.Contains(t, merged[2].Content, "blue")
	})

	t.Run("merges consecutive user messages", func(t *testing.T) {
		_, merged, err := ensureAlternation([]Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleUser, Content: "second"},
		})
		require.NoError(t, err)
		require.Len(t, merged, 1)
		assert.Contains(t, merged[0].Content, "first")
		assert.Contains(t, merged[0].Content, "second")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, _, err := ensureAlternation(nil)
		require.Error(t, err)
	})

	t.Run("rejects assistant-final transcript", func(t *testing.T) {
		_, _, err := ensureAlternation([]Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
		})
		require.Error(t, err)
	})
}
