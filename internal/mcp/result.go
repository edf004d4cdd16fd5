package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// RenderResult flattens a tool result into the text handed back to the model.
// Text content is joined by newlines, other content is JSON encoded, and
// structured content is used only when nothing else was returned.
func RenderResult(result *mcpsdk.CallToolResult) string {
	if result == nil {
		return ""
	}

	parts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcpsdk.TextContent:
			parts = append(parts, v.Text)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				parts = append(parts, fmt.Sprintf("%v", v))
				continue
			}
			parts = append(parts, string(raw))
		}
	}

	if len(parts) == 0 && result.StructuredContent != nil {
		if raw, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(raw))
		}
	}

	out := strings.Join(parts, "\n")
	if result.IsError {
		return "error: " + out
	}
	return out
}
