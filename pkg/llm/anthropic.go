package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/morgana-runtime/morgana/pkg/config"
)

// AnthropicClient implements ChatClient over the official Anthropic Go SDK.
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	temperature *float64
	maxTokens   int
}

// NewAnthropicClient creates a new Anthropic-backed ChatClient
func NewAnthropicClient(apiKey string, cfg *config.LLMProviderConfig) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		model:       anthropic.Model(cfg.Model),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Model returns the configured model name
func (c *AnthropicClient) Model() string { return string(c.model) }

// Chat sends the conversation to the Messages API. The Anthropic API
// requires strict user/assistant alternation with the system prompt
// extracted, so messages are normalized first.
func (c *AnthropicClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	systemPrompt, alternating, err := ensureAlternation(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("message alternation error: %w", err)
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: int64(c.maxTokens),
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: tool.Schema.Properties,
				Required:   tool.Schema.Required,
			}
			tools = append(tools, anthropic.ToolUnionParamOfTool(schema, tool.Name))
		}
		params.Tools = tools
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages call failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from anthropic")
	}

	var text strings.Builder
	var toolCalls []ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			toolCalls = append(toolCalls, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}

	return &Response{
		Text:      text.String(),
		ToolCalls: toolCalls,
		Usage: TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// ensureAlternation prepares messages for Anthropic API requirements.
// 1. Extracts system messages to the top-level system parameter
// 2. Renders tool requests/results as labeled user text
// 3. Merges consecutive non-assistant messages into single user messages
// 4. Validates strict user/assistant alternation ending with user
func ensureAlternation(messages []Message) (systemPrompt string, alternating []Message, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []Message
	for i := range messages {
		msg := messages[i]
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
			continue
		case RoleTool:
			msg = Message{
				Role:    RoleUser,
				Content: fmt.Sprintf("Tool %s returned: %s", msg.ToolName, msg.Content),
			}
		case RoleAssistant:
			// A pure tool-call turn has no text; Anthropic rejects empty
			// text blocks, so render the calls instead.
			if msg.Content == "" && len(msg.ToolCalls) > 0 {
				parts := make([]string, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					parts = append(parts, fmt.Sprintf("Calling tool %s with arguments %s", tc.Name, tc.Arguments))
				}
				msg = Message{Role: RoleAssistant, Content: strings.Join(parts, "\n")}
			}
		}
		rest = append(rest, msg)
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	var merged []Message
	var userParts []string
	for i := range rest {
		msg := &rest[i]
		if msg.Role == RoleAssistant {
			if len(userParts) > 0 {
				merged = append(merged, Message{Role: RoleUser, Content: strings.Join(userParts, "\n\n")})
				userParts = nil
			}
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	if len(userParts) > 0 {
		merged = append(merged, Message{Role: RoleUser, Content: strings.Join(userParts, "\n\n")})
	}

	for i := range merged {
		if i > 0 && merged[i].Role == merged[i-1].Role {
			return "", nil, fmt.Errorf("alternation violation at index %d: consecutive %s messages", i, merged[i].Role)
		}
	}
	if merged[0].Role != RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}

	return systemPrompt, merged, nil
}
