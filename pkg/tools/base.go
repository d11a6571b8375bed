package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Base tool names, registered on every agent.
const (
	ToolGetContextVariable          = "GetContextVariable"
	ToolSetContextVariable          = "SetContextVariable"
	ToolSetQuickReplies             = "SetQuickReplies"
	ToolRetrievePendingQuickReplies = "RetrievePendingQuickReplies"
)

type getContextVariableArgs struct {
	Name string `json:"name" jsonschema:"required,description=Name of the context variable to read"`
}

type setContextVariableArgs struct {
	Name  string `json:"name" jsonschema:"required,description=Name of the context variable to write"`
	Value string `json:"value" jsonschema:"required,description=Value to store"`
}

type setQuickRepliesArgs struct {
	Replies []QuickReply `json:"replies" jsonschema:"required,description=Buttons to offer the user; each has an id plus label plus value and an optional terminal flag"`
}

// RegisterBaseTools adds the context and quick-reply tools every agent
// carries regardless of intent.
func RegisterBaseTools(a *Adapter) error {
	getSchema, err := SchemaForType(&getContextVariableArgs{})
	if err != nil {
		return fmt.Errorf("failed to build %s schema: %w", ToolGetContextVariable, err)
	}
	setSchema, err := SchemaForType(&setContextVariableArgs{})
	if err != nil {
		return fmt.Errorf("failed to build %s schema: %w", ToolSetContextVariable, err)
	}
	repliesSchema, err := SchemaForType(&setQuickRepliesArgs{})
	if err != nil {
		return fmt.Errorf("failed to build %s schema: %w", ToolSetQuickReplies, err)
	}

	baseTools := []LocalTool{
		{
			Definition: ToolDefinition{
				Name:        ToolGetContextVariable,
				Description: "Read a variable from the conversation context. Use this before asking the user for information another agent may already have collected.",
			},
			Schema:  &getSchema,
			Handler: a.getContextVariable,
		},
		{
			Definition: ToolDefinition{
				Name:        ToolSetContextVariable,
				Description: "Store a variable in the conversation context for later turns and other agents.",
			},
			Schema:  &setSchema,
			Handler: a.setContextVariable,
		},
		{
			Definition: ToolDefinition{
				Name:        ToolSetQuickReplies,
				Description: "Offer the user a set of tappable reply buttons alongside your next message.",
			},
			Schema:  &repliesSchema,
			Handler: a.setQuickReplies,
		},
		{
			Definition: ToolDefinition{
				Name:        ToolRetrievePendingQuickReplies,
				Description: "Read and clear the quick replies currently staged for the user.",
			},
			Handler: a.retrievePendingQuickReplies,
		},
	}

	for _, tool := range baseTools {
		if err := a.RegisterLocal(tool); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) getContextVariable(_ context.Context, args map[string]any) (string, error) {
	name := stringify(args["name"])
	if name == "" {
		return "", fmt.Errorf("parameter 'name' is required")
	}
	value, ok := a.context.Get(name)
	if !ok {
		return "", fmt.Errorf("context variable %q is not set", name)
	}
	return value, nil
}

func (a *Adapter) setContextVariable(_ context.Context, args map[string]any) (string, error) {
	name := stringify(args["name"])
	if name == "" {
		return "", fmt.Errorf("parameter 'name' is required")
	}
	if name == PendingQuickRepliesKey {
		return "", fmt.Errorf("context variable name %q is reserved", name)
	}
	value := stringify(args["value"])
	a.context.Set(name, value)
	return fmt.Sprintf("Stored %s", name), nil
}

func (a *Adapter) setQuickReplies(_ context.Context, args map[string]any) (string, error) {
	raw, ok := args["replies"]
	if !ok {
		return "", fmt.Errorf("parameter 'replies' is required")
	}

	payload := stringify(raw)
	replies := decodeQuickReplies(payload)
	if len(replies) == 0 {
		return "", fmt.Errorf("replies must be a non-empty list")
	}

	data, err := json.Marshal(replies)
	if err != nil {
		return "", fmt.Errorf("failed to encode replies: %w", err)
	}
	a.context.Set(PendingQuickRepliesKey, string(data))
	return fmt.Sprintf("Staged %d quick replies", len(replies)), nil
}

func (a *Adapter) retrievePendingQuickReplies(_ context.Context, _ map[string]any) (string, error) {
	replies := a.ConsumePendingQuickReplies()
	if len(replies) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(replies)
	if err != nil {
		return "", fmt.Errorf("failed to encode replies: %w", err)
	}
	return string(data), nil
}
