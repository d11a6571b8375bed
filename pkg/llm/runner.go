package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// ToolExecutor executes one tool call on behalf of the LLM. The result is
// always a string for the model to read; execution failures come back as
// "Error: ..." text, never as Go errors.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) string
}

// Runner implements the multi-turn tool-calling loop.
// Tool calls come as structured ToolCall values (not parsed from text).
// Completion signal: a response without any ToolCalls.
type Runner struct {
	client        ChatClient
	maxIterations int
	logger        *slog.Logger
}

// NewRunner creates a runner around a shared ChatClient
func NewRunner(client ChatClient, maxIterations int) *Runner {
	return &Runner{
		client:        client,
		maxIterations: maxIterations,
		logger:        slog.With("component", "llm_runner"),
	}
}

// RunResult is the outcome of one completed loop.
type RunResult struct {
	Text     string
	Messages []Message // Full conversation including tool traffic
	Usage    TokenUsage
}

// maxConsecutiveFailures aborts the loop when the provider keeps failing
const maxConsecutiveFailures = 2

// Run executes the tool-calling loop until the model answers without
// requesting tools, then returns the final text. After maxIterations the
// model is forced to conclude without tools. Streaming chunks go to sink.
func (r *Runner) Run(ctx context.Context, messages []Message, tools []ToolSpec, exec ToolExecutor, sink ChunkSink) (*RunResult, error) {
	var totalUsage TokenUsage
	failures := 0

	for iteration := 1; iteration <= r.maxIterations; iteration++ {
		resp, err := r.client.Chat(ctx, &Request{Messages: messages, Tools: tools})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures >= maxConsecutiveFailures {
				return nil, fmt.Errorf("llm call failed %d times: %w", failures, err)
			}
			r.logger.Warn("LLM call failed, retrying with error context",
				"iteration", iteration, "error", err)
			messages = append(messages, Message{
				Role:    RoleUser,
				Content: fmt.Sprintf("Error from previous attempt: %s. Please try again.", err.Error()),
			})
			continue
		}
		failures = 0
		totalUsage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			// No tool calls — this is the final answer
			sink.Emit(&TextChunk{Content: resp.Text})
			sink.Emit(&UsageChunk{
				InputTokens:  totalUsage.InputTokens,
				OutputTokens: totalUsage.OutputTokens,
				TotalTokens:  totalUsage.TotalTokens,
			})
			return &RunResult{
				Text:     resp.Text,
				Messages: append(messages, Message{Role: RoleAssistant, Content: resp.Text}),
				Usage:    totalUsage,
			}, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			sink.Emit(&ToolCallChunk{CallID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
			result := exec.Execute(ctx, tc)
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
		}
	}

	return r.forceConclusion(ctx, messages, totalUsage, sink)
}

// forceConclusion forces the LLM to produce a final answer by calling without tools.
func (r *Runner) forceConclusion(ctx context.Context, messages []Message, totalUsage TokenUsage, sink ChunkSink) (*RunResult, error) {
	r.logger.Warn("Max iterations reached, forcing conclusion", "max_iterations", r.maxIterations)

	messages = append(messages, Message{
		Role: RoleUser,
		Content: fmt.Sprintf(
			"You have used all %d tool iterations. Provide your final answer now based on the information gathered. Do not request any more tools.",
			r.maxIterations),
	})

	resp, err := r.client.Chat(ctx, &Request{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("forced conclusion call failed: %w", err)
	}
	totalUsage.Add(resp.Usage)

	sink.Emit(&TextChunk{Content: resp.Text})
	return &RunResult{
		Text:     resp.Text,
		Messages: append(messages, Message{Role: RoleAssistant, Content: resp.Text}),
		Usage:    totalUsage,
	}, nil
}
