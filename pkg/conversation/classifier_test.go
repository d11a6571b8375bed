package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morgana-runtime/morgana/pkg/config"
)

func newTestClassifier(chat *fakeChat) *Classifier {
	cfg := testConfig()
	return NewClassifier(cfg.IntentRegistry, "Classify the message.", chat, nil)
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name           string
		llmOutput      string
		wantIntent     string
		wantConfidence float64
	}{
		{"known intent", `{"intent":"billing","confidence":0.9}`, "billing", 0.9},
		{"case-insensitive match", `{"intent":"BILLING","confidence":0.8}`, "billing", 0.8},
		{"unknown intent falls back", `{"intent":"weather","confidence":0.7}`, config.OtherIntent, 0.7},
		{"empty intent falls back", `{"intent":"","confidence":0.5}`, config.OtherIntent, 0.5},
		{"fenced JSON", "```json\n{\"intent\":\"billing\",\"confidence\":0.85}\n```", "billing", 0.85},
		{"not JSON at all", "probably billing?", config.OtherIntent, 0.0},
		{"confidence clamped high", `{"intent":"billing","confidence":3.2}`, "billing", 1.0},
		{"confidence clamped low", `{"intent":"billing","confidence":-1}`, "billing", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{}
			chat.enqueueText(tt.llmOutput)
			c := newTestClassifier(chat)

			got := c.Classify(context.Background(), "some message")
			assert.Equal(t, tt.wantIntent, got.Intent)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassifier_ProviderErrorFallsBackToOther(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueError(errors.New("provider down"))
	c := newTestClassifier(chat)

	got := c.Classify(context.Background(), "some message")
	assert.Equal(t, config.OtherIntent, got.Intent)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestClassifier_PromptContainsIntentCatalogue(t *testing.T) {
	chat := &fakeChat{}
	chat.enqueueText(classifyBilling)
	c := newTestClassifier(chat)

	c.Classify(context.Background(), "show my invoices")

	require.Equal(t, 1, chat.callCount())
	system := chat.calls[0].Messages[0].Content
	assert.True(t, strings.Contains(system, "billing"))
	assert.True(t, strings.Contains(system, "contract"))
	assert.True(t, strings.Contains(system, config.OtherIntent))
}
