package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/toolbridge/internal/concurrency"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/logger"
	"github.com/harunnryd/toolbridge/internal/mcp"
	"github.com/harunnryd/toolbridge/internal/model/contract"
)

type Runner struct {
	router  *Router
	timeout time.Duration
}

func NewRunner(router *Router, timeout time.Duration) *Runner {
	return &Runner{
		router:  router,
		timeout: timeout,
	}
}

func (r *Runner) Catalog() []contract.ToolDescriptor {
	if r == nil || r.router == nil {
		return nil
	}
	return r.router.Catalog()
}

// Execute handles one model tool call: decode arguments, call the owning
// server, render the result as text.
func (r *Runner) Execute(ctx context.Context, call contract.ToolCall) (string, error) {
	name := NormalizeToolName(call.Function.Name)

	args, err := DecodeArguments(call.Function.Arguments)
	if err != nil {
		slog.Warn("Tool arguments are not a JSON object", "tool", name, "call_id", call.ID, "error", err)
		return "", fmt.Errorf("tool %q: %w: %w", name, toolbridgeErrors.ErrInvocation, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	traceID := logger.GetTraceID(ctx)
	slog.Info("Executing tool", "tool", name, "server", r.router.Owner(name), "call_id", call.ID, "trace_id", traceID)

	var output string
	err = concurrency.SafeCall(func() error {
		result, err := r.router.Call(ctx, name, args)
		if err != nil {
			return err
		}
		output = mcp.RenderResult(result)
		if result.IsError {
			slog.Warn("Tool reported an error result", "tool", name, "call_id", call.ID, "trace_id", traceID)
		}
		return nil
	})

	duration := time.Since(start)
	if err != nil {
		slog.Error("Tool execution failed", "tool", name, "call_id", call.ID, "error", err, "duration", duration, "trace_id", traceID)
		return "", err
	}

	slog.Info("Tool execution success", "tool", name, "call_id", call.ID, "duration", duration, "trace_id", traceID)
	return output, nil
}

// DecodeArguments parses the model's argument text. Empty text is an empty
// object.
func DecodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, toolbridgeErrors.InvalidInput(fmt.Sprintf("arguments are not a JSON object: %v", err))
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
