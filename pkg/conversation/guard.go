package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/morgana-runtime/morgana/pkg/config"
	"github.com/morgana-runtime/morgana/pkg/llm"
	"github.com/morgana-runtime/morgana/pkg/metrics"
)

// Guard stage labels, surfaced in metrics.
const (
	guardStageTermFilter = "term_filter"
	guardStageLLM        = "llm"
)

// GuardResult is the moderation verdict for one message.
type GuardResult struct {
	Compliant bool
	Violation string // category or policy reason, empty when compliant
	Stage     string // which stage rejected, empty when compliant
}

// Guard is the two-stage content moderator: a deterministic banned-term
// filter followed by an LLM policy check. Stateless; one instance is
// shared by the conversation's supervisor across turns.
type Guard struct {
	terms    []config.ProfanityTerm
	policies []config.PolicyConfig
	prompt   string
	client   llm.ChatClient
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewGuard builds a guard from the configured term list and policy prompt.
// Policies are applied in priority order (lowest number first).
func NewGuard(cfg config.GuardConfig, prompt string, client llm.ChatClient, rec *metrics.Recorder) *Guard {
	policies := make([]config.PolicyConfig, len(cfg.Policies))
	copy(policies, cfg.Policies)
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].Priority < policies[j].Priority
	})
	return &Guard{
		terms:    cfg.ProfanityTerms,
		policies: policies,
		prompt:   prompt,
		client:   client,
		metrics:  rec,
		logger:   slog.With("component", "guard"),
	}
}

// guardVerdict is the JSON shape the policy LLM must produce.
type guardVerdict struct {
	Compliant bool   `json:"compliant"`
	Violation string `json:"violation,omitempty"`
}

// Check runs both stages. The term filter is fail-closed; the LLM stage is
// fail-open on parse or provider errors, because model flakiness must not
// silence users — the turn still gets classified and routed.
func (g *Guard) Check(ctx context.Context, text string) GuardResult {
	lowered := strings.ToLower(text)
	for _, entry := range g.terms {
		term := strings.ToLower(entry.Term)
		if term == "" || !strings.Contains(lowered, term) {
			continue
		}
		category := entry.Category
		if category == "" {
			category = "profanity"
		}
		g.metrics.GuardViolation(guardStageTermFilter, category)
		g.logger.Info("Message rejected by term filter", "category", category)
		return GuardResult{Compliant: false, Violation: category, Stage: guardStageTermFilter}
	}

	if g.prompt == "" || g.client == nil {
		return GuardResult{Compliant: true}
	}

	resp, err := g.client.Chat(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: g.policyPrompt()},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		g.metrics.LLMCall("guard", false, 0, 0)
		g.logger.Warn("Guard policy check failed, treating as compliant", "error", err)
		return GuardResult{Compliant: true}
	}
	g.metrics.LLMCall("guard", true, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var verdict guardVerdict
	if err := llm.DecodeLenient(resp.Text, &verdict); err != nil {
		g.logger.Warn("Guard verdict was not valid JSON, treating as compliant", "error", err)
		return GuardResult{Compliant: true}
	}
	if verdict.Compliant {
		return GuardResult{Compliant: true}
	}

	violation := verdict.Violation
	if violation == "" {
		violation = "policy"
	}
	g.metrics.GuardViolation(guardStageLLM, violation)
	g.logger.Info("Message rejected by policy check", "violation", violation)
	return GuardResult{Compliant: false, Violation: violation, Stage: guardStageLLM}
}

// policyPrompt renders the configured prompt with the ordered policy list
// appended, so the model sees which policies apply and in what order.
func (g *Guard) policyPrompt() string {
	if len(g.policies) == 0 {
		return g.prompt
	}
	var b strings.Builder
	b.WriteString(g.prompt)
	b.WriteString("\n\nPolicies to enforce, in order:\n")
	for i, p := range g.policies {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Type)
	}
	return b.String()
}
