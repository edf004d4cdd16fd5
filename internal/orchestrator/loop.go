package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/toolbridge/internal/config"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"

	"golang.org/x/sync/errgroup"
)

// Session is the conversation side of the loop. *conversation.Session implements it.
type Session interface {
	RequestTurn(ctx context.Context, prompt string) (*contract.TurnResult, error)
	AppendToolResult(toolCallID, output string) error
	SetTools(tools []contract.ToolDescriptor)
}

// Executor runs tool calls. *tool.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, call contract.ToolCall) (string, error)
	Catalog() []contract.ToolDescriptor
}

type Config struct {
	MaxTurns         int
	MaxParallelTools int
	AbortOnToolError bool
}

type Result struct {
	Content   string
	Turns     int
	ToolCalls int
}

// Loop drives turns until the model answers without tool calls.
type Loop struct {
	session  Session
	executor Executor
	cfg      Config
}

func New(session Session, executor Executor, cfg Config) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = config.DefaultOrchestratorMaxTurns
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = config.DefaultOrchestratorMaxParallel
	}

	return &Loop{session: session, executor: executor, cfg: cfg}
}

// Run sends prompt and keeps answering tool calls. Every call of a turn gets
// a tool result before the next turn, including when Run gives up.
func (l *Loop) Run(ctx context.Context, prompt string) (*Result, error) {
	l.session.SetTools(l.executor.Catalog())

	result := &Result{}
	turn, err := l.session.RequestTurn(ctx, prompt)
	if err != nil {
		return nil, err
	}
	result.Turns = 1
	result.Content = turn.Content

	for turn.HasToolCalls() {
		if result.Turns >= l.cfg.MaxTurns {
			msg := fmt.Sprintf("error: turn budget of %d exhausted, call not executed", l.cfg.MaxTurns)
			if err := l.fillResults(turn.ToolCalls, msg); err != nil {
				return result, err
			}
			return result, fmt.Errorf("%w: %d turns", toolbridgeErrors.ErrMaxTurns, result.Turns)
		}

		outputs, err := l.dispatch(ctx, turn.ToolCalls)
		if err != nil {
			if fillErr := l.fillResults(turn.ToolCalls, "error: aborted: "+err.Error()); fillErr != nil {
				return result, errors.Join(err, fillErr)
			}
			return result, err
		}
		result.ToolCalls += len(turn.ToolCalls)

		for i, call := range turn.ToolCalls {
			if err := l.session.AppendToolResult(call.ID, outputs[i]); err != nil {
				return result, err
			}
		}

		turn, err = l.session.RequestTurn(ctx, "")
		if err != nil {
			return result, err
		}
		result.Turns++
		result.Content = turn.Content
	}

	return result, nil
}

// dispatch runs one turn's calls concurrently and returns outputs in call
// order. Tool failures become "error: ..." outputs unless AbortOnToolError
// is set.
func (l *Loop) dispatch(ctx context.Context, calls []contract.ToolCall) ([]string, error) {
	outputs := make([]string, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.MaxParallelTools)

	for i, call := range calls {
		g.Go(func() error {
			out, err := l.executor.Execute(gctx, call)
			if err == nil {
				outputs[i] = out
				return nil
			}

			if l.cfg.AbortOnToolError || ctx.Err() != nil {
				return fmt.Errorf("tool call %s (%s): %w", call.ID, call.Function.Name, err)
			}

			slog.Warn("Tool call failed, reporting to model", "tool", call.Function.Name, "call_id", call.ID, "category", toolbridgeErrors.NewDefaultErrorMapper().Category(err))
			outputs[i] = "error: " + err.Error()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// fillResults answers every call that still lacks a result with msg.
func (l *Loop) fillResults(calls []contract.ToolCall, msg string) error {
	for _, call := range calls {
		err := l.session.AppendToolResult(call.ID, msg)
		if err != nil && !errors.Is(err, toolbridgeErrors.ErrUnknownToolCall) {
			return err
		}
	}
	return nil
}
