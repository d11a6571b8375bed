package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/morgana-runtime/morgana/pkg/config"
)

// OpenAIClient implements ChatClient over the official OpenAI Go SDK
// using the Responses API.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature *float64
	maxTokens   int
}

// NewOpenAIClient creates a new OpenAI-backed ChatClient
func NewOpenAIClient(apiKey string, cfg *config.LLMProviderConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string { return c.model }

// Chat sends the conversation to the Responses API and extracts text
// plus structured function calls from the output items.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(c.maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(flattenMessages(req.Messages))},
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]responses.ToolUnionParam, len(req.Tools))
		for i, tool := range req.Tools {
			tools[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": tool.Schema.Properties,
						"required":   tool.Schema.Required,
					}),
				},
			}
		}
		params.Tools = tools
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from openai")
	}

	var toolCalls []ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		toolCalls = append(toolCalls, ToolCall{
			ID:        fc.CallID,
			Name:      fc.Name,
			Arguments: fc.Arguments,
		})
	}

	return &Response{
		Text:      resp.OutputText(),
		ToolCalls: toolCalls,
		Usage: TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// flattenMessages renders the conversation as a single prompt string for
// the Responses API. Tool requests and results become labeled text so the
// model keeps full context across loop iterations.
func flattenMessages(messages []Message) string {
	var b strings.Builder
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case RoleSystem:
			fmt.Fprintf(&b, "System: %s\n\n", msg.Content)
		case RoleUser:
			fmt.Fprintf(&b, "User: %s\n\n", msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				fmt.Fprintf(&b, "Assistant: %s\n\n", msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(&b, "Assistant called tool %s with arguments %s\n\n", tc.Name, tc.Arguments)
			}
		case RoleTool:
			fmt.Fprintf(&b, "Tool %s returned: %s\n\n", msg.ToolName, msg.Content)
		}
	}
	return strings.TrimSuffix(b.String(), "\n\n")
}
