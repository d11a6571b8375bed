package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/metrics"
)

// Classifier maps user text to one of the configured intents via the LLM.
// Stateless: it never reads or writes conversation state, and results are
// never cached across turns.
type Classifier struct {
	intents *config.IntentRegistry
	prompt  string
	client  llm.ChatClient
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewClassifier builds a classifier over the intent registry.
func NewClassifier(intents *config.IntentRegistry, prompt string, client llm.ChatClient, rec *metrics.Recorder) *Classifier {
	return &Classifier{
		intents: intents,
		prompt:  prompt,
		client:  client,
		metrics: rec,
		logger:  slog.With("component", "classifier"),
	}
}

// classifierVerdict is the JSON shape the classification LLM must produce.
type classifierVerdict struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// fallback is the classification used when the provider fails or the
// output cannot be parsed: the reserved "other" intent at zero confidence.
func (c *Classifier) fallback() Classification {
	return Classification{Intent: config.OtherIntent, Confidence: 0.0}
}

// Classify returns the intent for one message. Intent matching is
// case-insensitive; anything unknown or unparseable becomes "other".
func (c *Classifier) Classify(ctx context.Context, text string) Classification {
	resp, err := c.client.Chat(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: c.classificationPrompt()},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		c.metrics.LLMCall("classifier", false, 0, 0)
		c.logger.Warn("Classification call failed, falling back to other", "error", err)
		return c.fallback()
	}
	c.metrics.LLMCall("classifier", true, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var verdict classifierVerdict
	if err := llm.DecodeLenient(resp.Text, &verdict); err != nil {
		c.logger.Warn("Classifier output was not valid JSON, falling back to other", "error", err)
		return c.fallback()
	}

	intent := strings.ToLower(strings.TrimSpace(verdict.Intent))
	if intent == "" || (intent != config.OtherIntent && !c.intents.Has(intent)) {
		c.logger.Info("Classifier returned unknown intent, falling back to other",
			"intent", verdict.Intent)
		intent = config.OtherIntent
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	c.metrics.Classification(intent)
	return Classification{Intent: intent, Confidence: confidence}
}

// classificationPrompt renders the configured prompt with the intent
// catalogue (name → description) appended.
func (c *Classifier) classificationPrompt() string {
	var b strings.Builder
	b.WriteString(c.prompt)
	b.WriteString("\n\nAvailable intents:\n")
	for _, intent := range c.intents.GetAll() {
		fmt.Fprintf(&b, "- %s: %s\n", intent.Name, intent.Description)
	}
	fmt.Fprintf(&b, "- %s: anything that matches none of the above\n", config.OtherIntent)
	return b.String()
}
