package tools

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/morgana-runtime/morgana/pkg/llm"
)

// MCPCaller is the slice of the MCP client pool the adapter needs.
// Implemented by mcp.Client.
type MCPCaller interface {
	ListTools(ctx context.Context, server string) ([]*mcpsdk.Tool, error)
	CallTool(ctx context.Context, server, tool string, args map[string]any) (text string, isError bool, err error)
}

// mcpBinding is one discovered remote tool, addressable as "server.tool".
type mcpBinding struct {
	server      string
	tool        string
	description string
	schema      llm.Schema
	paramTypes  map[string]string // property name → json-schema type
}

// convertMCPSchema decodes a remote tool's input schema into the
// provider-neutral form, capturing per-parameter types for conversion.
// A missing or malformed schema yields an open object.
func convertMCPSchema(tool *mcpsdk.Tool) (llm.Schema, map[string]string) {
	schema := llm.Schema{Type: "object"}
	paramTypes := make(map[string]string)

	if tool.InputSchema == nil {
		return schema, paramTypes
	}
	data, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return schema, paramTypes
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return llm.Schema{Type: "object"}, paramTypes
	}
	if schema.Type == "" {
		schema.Type = "object"
	}

	for name, prop := range schema.Properties {
		paramType := "string"
		if propMap, ok := prop.(map[string]any); ok {
			if t, ok := propMap["type"].(string); ok {
				paramType = t
			}
		}
		paramTypes[name] = paramType
	}
	return schema, paramTypes
}

// qualifiedToolName joins server and tool into the LLM-visible name.
func qualifiedToolName(server, tool string) string {
	return fmt.Sprintf("%s.%s", server, tool)
}
