package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/harunnryd/toolbridge/internal/formatter"
	"github.com/harunnryd/toolbridge/internal/model/contract"
	"github.com/harunnryd/toolbridge/internal/transcript"

	"github.com/google/shlex"
)

// ErrExit asks the REPL to stop reading input.
var ErrExit = errors.New("exit requested")

type Handler interface {
	CanHandle(input string) bool
	Execute(ctx context.Context, input string) error
}

// Conversation is the read side of a conversation session.
type Conversation interface {
	ID() string
	History() []contract.Message
	PendingToolCalls() []string
}

// Catalog lists routed tools and their owners. *tool.Router implements it.
type Catalog interface {
	Catalog() []contract.ToolDescriptor
	Owner(name string) string
}

type DefaultCommandHandler struct {
	conversation Conversation
	tools        Catalog
	output       io.Writer
	provider     string
	model        string
}

const commandOutputPrefix = "[CMD] "

func NewHandler(conv Conversation, tools Catalog, output io.Writer, provider, model string) *DefaultCommandHandler {
	if output == nil {
		output = io.Discard
	}
	return &DefaultCommandHandler{
		conversation: conv,
		tools:        tools,
		output:       output,
		provider:     provider,
		model:        model,
	}
}

func (h *DefaultCommandHandler) CanHandle(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Execute runs one slash command. It returns ErrExit for /exit and /quit;
// command failures are reported on the output, not returned.
func (h *DefaultCommandHandler) Execute(ctx context.Context, input string) error {
	parts, parseErr := shlex.Split(input)
	if parseErr != nil {
		parts = strings.Fields(input)
	}
	if len(parts) == 0 {
		return nil
	}
	cmd := parts[0]
	args := parts[1:]

	slog.Debug("Executing slash command", "cmd", cmd)

	var msg string
	var err error

	switch cmd {
	case "/exit", "/quit":
		return ErrExit
	case "/tools":
		msg, err = h.handleTools(args)
	case "/history":
		msg = h.handleHistory()
	case "/save":
		msg, err = h.handleSave(args)
	case "/help":
		msg = h.helpText()
	default:
		msg = fmt.Sprintf("Unknown command: %s", cmd)
	}

	if err != nil {
		msg = fmt.Sprintf("Command failed: %v", err)
		slog.Error("Command execution failed", "cmd", cmd, "error", err)
	}

	if _, err := fmt.Fprintln(h.output, formatCommandOutput(msg)); err != nil {
		return fmt.Errorf("write command output: %w", err)
	}
	return nil
}

func (h *DefaultCommandHandler) handleTools(args []string) (string, error) {
	if h.tools == nil {
		return "", fmt.Errorf("tool router not initialized")
	}
	entries := formatter.EntriesFrom(h.tools.Catalog(), h.tools.Owner)
	table := formatter.NewTableFormatter()

	if len(args) == 0 {
		out, err := table.FormatTools(entries)
		if err != nil {
			return "", err
		}
		return "\n" + out, nil
	}

	for i := range entries {
		if entries[i].Name == args[0] {
			out, err := table.FormatTool(&entries[i])
			if err != nil {
				return "", err
			}
			return "\n" + out, nil
		}
	}
	return fmt.Sprintf("Unknown tool: %s", args[0]), nil
}

func (h *DefaultCommandHandler) handleHistory() string {
	if h.conversation == nil {
		return "No conversation"
	}
	history := h.conversation.History()
	if len(history) == 0 {
		return "History is empty"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d messages", len(history))
	for i, msg := range history {
		fmt.Fprintf(&b, "\n%3d %-9s %s", i+1, msg.Role, summarize(msg))
	}
	if pending := h.conversation.PendingToolCalls(); len(pending) > 0 {
		fmt.Fprintf(&b, "\nawaiting results: %s", strings.Join(pending, ", "))
	}
	return b.String()
}

func (h *DefaultCommandHandler) handleSave(args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /save <file.json|file.yaml>", nil
	}
	if h.conversation == nil {
		return "", fmt.Errorf("no conversation to save")
	}

	path, err := transcript.Write(args[0], transcript.Document{
		SessionID: h.conversation.ID(),
		Provider:  h.provider,
		Model:     h.model,
		Messages:  h.conversation.History(),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Transcript saved to %s", path), nil
}

func (h *DefaultCommandHandler) helpText() string {
	return "Available commands: /help, /tools [name], /history, /save <file>, /exit"
}

func summarize(msg contract.Message) string {
	switch {
	case msg.Role == contract.RoleTool:
		return fmt.Sprintf("[%s] %s", msg.ToolCallID, oneLine(msg.Content, 80))
	case len(msg.ToolCalls) > 0:
		calls := make([]string, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			calls = append(calls, fmt.Sprintf("%s(%s)", call.Function.Name, oneLine(call.Function.Arguments, 40)))
		}
		text := oneLine(msg.Content, 40)
		if text != "" {
			text += " "
		}
		return text + "-> " + strings.Join(calls, ", ")
	default:
		return oneLine(msg.Content, 80)
	}
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatCommandOutput(msg string) string {
	if strings.HasPrefix(msg, commandOutputPrefix) {
		return msg
	}
	return commandOutputPrefix + msg
}
