package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/morgana-runtime/morgana/pkg/llm"
)

// SchemaForType reflects a Go struct into the JSON-schema object the LLM
// sees for a tool's parameters. Field descriptions and required flags
// come from `json` and `jsonschema` struct tags.
func SchemaForType(v any) (llm.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	reflected := reflector.Reflect(v)
	data, err := json.Marshal(reflected)
	if err != nil {
		return llm.Schema{}, fmt.Errorf("failed to marshal reflected schema: %w", err)
	}

	var schema llm.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return llm.Schema{}, fmt.Errorf("failed to decode reflected schema: %w", err)
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

// schemaFromDefinition builds the LLM-visible parameter schema from a
// declared tool definition. Context-scope parameters are resolved from
// the conversation context at call time and never appear in the schema.
func schemaFromDefinition(def ToolDefinition) llm.Schema {
	properties := make(map[string]any)
	var required []string

	for _, p := range def.Parameters {
		if p.Scope == ScopeContext {
			continue
		}
		properties[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return llm.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
