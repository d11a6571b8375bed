package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/morgana-runtime/morgana/pkg/llm"
)

// historyEncoding is the tokenizer used for budget estimation. The exact
// encoding matters less than consistency; cl100k_base is close enough for
// every model we route to.
const historyEncoding = "cl100k_base"

// summaryKeepTurns is how many of the newest messages survive a fold.
const summaryKeepTurns = 4

// ChatHistory is one agent's append-only (role, text) log. When the
// estimated token size exceeds the budget, the oldest messages are folded
// into a single summary message via the summarizer prompt.
type ChatHistory struct {
	messages []llm.Message
	budget   int

	client           llm.ChatClient
	summarizerPrompt string

	encoder *tiktoken.Tiktoken
	logger  *slog.Logger
}

// NewChatHistory creates a history with the given token budget. budget <= 0
// disables summarization. client may be nil when summarization is disabled.
func NewChatHistory(budget int, client llm.ChatClient, summarizerPrompt string) *ChatHistory {
	encoder, err := tiktoken.GetEncoding(historyEncoding)
	if err != nil {
		// Estimation falls back to a character heuristic
		slog.Warn("Failed to load tokenizer encoding, falling back to character estimate",
			"encoding", historyEncoding, "error", err)
		encoder = nil
	}
	return &ChatHistory{
		budget:           budget,
		client:           client,
		summarizerPrompt: summarizerPrompt,
		encoder:          encoder,
		logger:           slog.With("component", "chat_history"),
	}
}

// Append adds one message to the log.
func (h *ChatHistory) Append(role, text string) {
	h.messages = append(h.messages, llm.Message{Role: role, Content: text})
}

// Messages returns the current log, oldest first. The returned slice is
// shared; callers must not mutate it.
func (h *ChatHistory) Messages() []llm.Message {
	return h.messages
}

// Len returns the number of messages in the log.
func (h *ChatHistory) Len() int {
	return len(h.messages)
}

// TokenEstimate returns the estimated token size of the whole log.
func (h *ChatHistory) TokenEstimate() int {
	total := 0
	for _, m := range h.messages {
		total += h.estimate(m.Content)
	}
	return total
}

func (h *ChatHistory) estimate(text string) int {
	if h.encoder != nil {
		return len(h.encoder.Encode(text, nil, nil))
	}
	// Rough heuristic: one token per four characters
	return len(text)/4 + 1
}

// CompactIfNeeded folds the oldest messages into a one-message summary
// when the token estimate exceeds the budget. Summarization failure leaves
// the history untouched; running over budget beats losing context.
func (h *ChatHistory) CompactIfNeeded(ctx context.Context) {
	if h.budget <= 0 || h.client == nil || h.summarizerPrompt == "" {
		return
	}
	if h.TokenEstimate() <= h.budget || len(h.messages) <= summaryKeepTurns {
		return
	}

	fold := h.messages[:len(h.messages)-summaryKeepTurns]
	keep := h.messages[len(h.messages)-summaryKeepTurns:]

	var transcript strings.Builder
	for _, m := range fold {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := h.client.Chat(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: h.summarizerPrompt},
			{Role: llm.RoleUser, Content: transcript.String()},
		},
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		h.logger.Warn("History summarization failed, keeping full history",
			"messages", len(h.messages), "error", err)
		return
	}

	summary := llm.Message{
		Role:    llm.RoleUser,
		Content: "Summary of the conversation so far: " + strings.TrimSpace(resp.Text),
	}
	h.messages = append([]llm.Message{summary}, keep...)
	h.logger.Info("Folded chat history into summary",
		"folded", len(fold), "kept", len(keep))
}
