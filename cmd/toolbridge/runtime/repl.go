package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/harunnryd/toolbridge/internal/concurrency"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/orchestrator/command"
)

type REPL struct {
	components     *RuntimeComponents
	commands       command.Handler
	errors         toolbridgeErrors.ErrorMapper
	input          io.Reader
	output         io.Writer
	transcriptPath string
}

// NewREPL reads prompts from in. Model text is streamed to the conversation
// sink; prompts, command output and errors go to out.
func NewREPL(components *RuntimeComponents, in io.Reader, out io.Writer, transcriptPath string) *REPL {
	return &REPL{
		components: components,
		commands: command.NewHandler(
			components.Conversation,
			components.Router,
			out,
			components.Config.Model.Provider,
			components.Config.Model.Name,
		),
		errors:         toolbridgeErrors.NewDefaultErrorMapper(),
		input:          in,
		output:         out,
		transcriptPath: transcriptPath,
	}
}

func (r *REPL) Start() error {
	fmt.Fprintf(r.output, "toolbridge session %s (%s, %d tools)\n",
		r.components.Conversation.ID(), r.components.Config.Model.Name, len(r.components.Router.Catalog()))
	fmt.Fprintln(r.output, "Type '/help' for commands, '/exit' to quit.")

	lines := make(chan string)
	readErr := make(chan error, 1)
	concurrency.SafeGo(func() {
		scanner := bufio.NewScanner(r.input)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-r.components.Ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}, func(p interface{}) {
		readErr <- fmt.Errorf("input reader panic: %v", p)
	})

	for {
		fmt.Fprint(r.output, "> ")

		select {
		case <-r.components.Ctx.Done():
			return nil
		case err := <-readErr:
			fmt.Fprintln(r.output)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			if err := r.handleLine(strings.TrimSpace(line)); err != nil {
				if errors.Is(err, command.ErrExit) {
					return nil
				}
				return err
			}
		}
	}
}

func (r *REPL) handleLine(text string) error {
	if text == "" {
		return nil
	}

	if r.commands.CanHandle(text) {
		return r.commands.Execute(r.components.Ctx, text)
	}

	result, err := r.components.Loop.Run(r.components.Ctx, text)
	fmt.Fprintln(r.output)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		r.reportError(err)
	} else {
		slog.Debug("Turn completed", "turns", result.Turns, "tool_calls", result.ToolCalls)
	}

	if path, err := r.components.SaveTranscript(r.transcriptPath); err != nil {
		slog.Warn("Failed to save transcript", "path", r.transcriptPath, "error", err)
	} else if path != "" {
		slog.Debug("Transcript saved", "path", path)
	}
	return nil
}

func (r *REPL) reportError(err error) {
	mapped := r.errors.MapError(err)
	slog.Error("Turn failed",
		"error", err,
		"category", r.errors.Category(mapped),
		"retryable", r.errors.IsRetryable(mapped),
		"session_id", r.components.Conversation.ID())

	fmt.Fprintf(r.output, "Error: %v\n", err)
	if hint := errorHint(r.errors, mapped); hint != "" {
		fmt.Fprintf(r.output, "Hint: %s\n", hint)
	}
}

// errorHint suggests what the user can do next after a failed prompt. The
// session stays open in every case.
func errorHint(mapper toolbridgeErrors.ErrorMapper, err error) string {
	switch {
	case err == nil:
		return ""
	case mapper.IsRetryable(err):
		return "temporary failure, send the prompt again"
	case toolbridgeErrors.IsCategory(err, toolbridgeErrors.ErrTransport):
		return "the model request failed; check model.base_url, the API key and the network"
	case toolbridgeErrors.IsCategory(err, toolbridgeErrors.ErrMaxTurns):
		return "the model kept calling tools; raise orchestrator.max_turns or narrow the prompt"
	case toolbridgeErrors.IsCategory(err, toolbridgeErrors.ErrMalformedFragment):
		return "the model streamed an unusable tool call; send the prompt again"
	case toolbridgeErrors.IsCategory(err, toolbridgeErrors.ErrInvocation):
		return "a tool server rejected the call; /tools lists what is available"
	case toolbridgeErrors.IsCategory(err, toolbridgeErrors.ErrInvalidInput):
		return "check the prompt and the configuration"
	case toolbridgeErrors.IsCategory(err, toolbridgeErrors.ErrInternal):
		return "unexpected error; run with --log.level debug for details"
	default:
		return ""
	}
}
