// Package mcptest runs in-memory MCP servers for tests.
package mcptest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool pairs a tool definition with its handler.
type Tool struct {
	Tool    *mcpsdk.Tool
	Handler mcpsdk.ToolHandler
}

// NewServer starts an in-memory server with the given tools and returns the
// client end of the transport. The server is closed on test cleanup.
func NewServer(t testing.TB, tools ...Tool) mcpsdk.Transport {
	t.Helper()
	return NewServerWithMiddleware(t, nil, tools...)
}

// NewServerWithMiddleware is NewServer with receiving middleware installed
// on the server before it connects.
func NewServerWithMiddleware(t testing.TB, middleware []mcpsdk.Middleware, tools ...Tool) mcpsdk.Transport {
	t.Helper()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "mcptest", Version: "test"}, nil)
	if len(middleware) > 0 {
		server.AddReceivingMiddleware(middleware...)
	}
	for _, tool := range tools {
		server.AddTool(tool.Tool, tool.Handler)
	}

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	session, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		t.Fatalf("mcptest: server connect failed: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	return clientTransport
}

// FailMethod rejects every request for method with cause and passes the
// rest through.
func FailMethod(method string, cause error) mcpsdk.Middleware {
	return func(next mcpsdk.MethodHandler) mcpsdk.MethodHandler {
		return func(ctx context.Context, m string, req mcpsdk.Request) (mcpsdk.Result, error) {
			if m == method {
				return nil, cause
			}
			return next(ctx, m, req)
		}
	}
}

// Calculator returns "add" (sums a and b), "fail" (an IsError result) and
// "boom" (a protocol error).
func Calculator() []Tool {
	return []Tool{
		{
			Tool: &mcpsdk.Tool{
				Name:        "add",
				Description: "adds two numbers",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"a": map[string]any{"type": "number"},
						"b": map[string]any{"type": "number"},
					},
					"required": []any{"a", "b"},
				},
			},
			Handler: func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				var args struct {
					A float64 `json:"a"`
					B float64 `json:"b"`
				}
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return nil, fmt.Errorf("decode arguments: %w", err)
				}
				sum := strconv.FormatFloat(args.A+args.B, 'f', -1, 64)
				return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: sum}}}, nil
			},
		},
		{
			Tool: &mcpsdk.Tool{
				Name:        "fail",
				Description: "always reports a tool-level error",
				InputSchema: map[string]any{"type": "object"},
			},
			Handler: func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "division by zero"}},
				}, nil
			},
		},
		{
			Tool: &mcpsdk.Tool{
				Name:        "boom",
				Description: "always fails the request",
				InputSchema: map[string]any{"type": "object"},
			},
			Handler: func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				return nil, fmt.Errorf("boom")
			},
		},
	}
}

// Echo returns a single "echo" tool that replies with its "text" argument.
func Echo() []Tool {
	return []Tool{{
		Tool: &mcpsdk.Tool{
			Name:        "echo",
			Description: "echoes text",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
			},
		},
		Handler: func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			var args struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(req.Params.Arguments, &args)
			return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: args.Text}}}, nil
		},
	}}
}
