package mcp

import (
	"encoding/json"
	"strings"
)

// ToolDescriptor is basic metadata describing one MCP tool, as parsed
// from a tools/list response. Serialized with the camelCase schema key
// for the frontend.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// parseTools locates the tools array inside a tools/list result and
// extracts the well-formed entries. An absent or non-array tools member
// yields an empty list, not an error; entries without a string name are
// skipped without failing the parse. The input schema is accepted under
// either the camelCase or snake_case spelling — camelCase wins when
// both are present — and discarded unless it is an object.
func parseTools(result json.RawMessage) []ToolDescriptor {
	var envelope map[string]any
	if err := json.Unmarshal(result, &envelope); err != nil {
		return []ToolDescriptor{}
	}

	entries, ok := envelope["tools"].([]any)
	if !ok {
		return []ToolDescriptor{}
	}

	out := make([]ToolDescriptor, 0, len(entries))
	for _, entry := range entries {
		tool, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, ok := tool["name"].(string)
		if !ok {
			continue
		}

		td := ToolDescriptor{Name: name}
		if desc, ok := tool["description"].(string); ok {
			td.Description = desc
		}

		schema := tool["inputSchema"]
		if schema == nil {
			schema = tool["input_schema"]
		}
		if obj, ok := schema.(map[string]any); ok {
			td.InputSchema = obj
		}

		out = append(out, td)
	}
	return out
}

// extractContent pulls the textual content out of a tools/call result.
// A bare string content member is returned as-is; an array of content
// blocks yields the text blocks joined by newline, with non-text blocks
// dropped. Any other shape yields an empty string rather than an error.
func extractContent(result json.RawMessage) string {
	var envelope map[string]any
	if err := json.Unmarshal(result, &envelope); err != nil {
		return ""
	}

	switch content := envelope["content"].(type) {
	case string:
		return content
	case []any:
		var parts []string
		for _, item := range content {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := block["type"].(string); !ok || t != "text" {
				continue
			}
			if text, ok := block["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
