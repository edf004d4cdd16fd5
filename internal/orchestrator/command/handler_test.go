package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/toolbridge/internal/model/contract"
	"github.com/harunnryd/toolbridge/internal/transcript"
)

type stubConversation struct {
	history []contract.Message
	pending []string
}

func (s *stubConversation) ID() string                  { return "session-1" }
func (s *stubConversation) History() []contract.Message { return s.history }
func (s *stubConversation) PendingToolCalls() []string  { return s.pending }

type stubCatalog struct {
	tools  []contract.ToolDescriptor
	owners map[string]string
}

func (s *stubCatalog) Catalog() []contract.ToolDescriptor { return s.tools }
func (s *stubCatalog) Owner(name string) string           { return s.owners[name] }

func newTestHandler() (*DefaultCommandHandler, *bytes.Buffer) {
	conv := &stubConversation{
		history: []contract.Message{
			{Role: contract.RoleUser, Content: "what is 2 + 3?"},
			{Role: contract.RoleAssistant, ToolCalls: []contract.ToolCall{{
				ID:       "call_1",
				Type:     contract.ToolTypeFunction,
				Function: contract.FunctionCall{Name: "add", Arguments: `{"a":2,"b":3}`},
			}}},
			{Role: contract.RoleTool, Content: "5", ToolCallID: "call_1"},
		},
	}
	tools := &stubCatalog{
		tools:  []contract.ToolDescriptor{{Name: "add", Description: "adds two numbers"}},
		owners: map[string]string{"add": "calc"},
	}
	out := &bytes.Buffer{}
	return NewHandler(conv, tools, out, "openai", "gpt-4o-mini"), out
}

func TestHandler_CanHandle(t *testing.T) {
	handler, _ := newTestHandler()
	if !handler.CanHandle("  /help") {
		t.Fatal("expected slash input to be handled")
	}
	if handler.CanHandle("hello /help") {
		t.Fatal("plain prompt must not be handled")
	}
}

func TestHandler_HelpCommand(t *testing.T) {
	handler, out := newTestHandler()

	if err := handler.Execute(context.Background(), "/help"); err != nil {
		t.Fatalf("execute help: %v", err)
	}
	if !strings.HasPrefix(out.String(), commandOutputPrefix) {
		t.Fatalf("expected command output prefix, got %q", out.String())
	}
	if !strings.Contains(out.String(), "/save <file>") {
		t.Fatalf("help text missing /save: %q", out.String())
	}
}

func TestHandler_ExitCommand(t *testing.T) {
	handler, out := newTestHandler()

	for _, input := range []string{"/exit", "/quit"} {
		if err := handler.Execute(context.Background(), input); !errors.Is(err, ErrExit) {
			t.Fatalf("%s: expected ErrExit, got %v", input, err)
		}
	}
	if out.Len() != 0 {
		t.Fatalf("exit should not print, got %q", out.String())
	}
}

func TestHandler_ToolsCommand(t *testing.T) {
	handler, out := newTestHandler()

	if err := handler.Execute(context.Background(), "/tools"); err != nil {
		t.Fatalf("execute tools: %v", err)
	}
	for _, want := range []string{"calc", "add", "adds two numbers"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("tools output missing %q: %s", want, out.String())
		}
	}

	out.Reset()
	if err := handler.Execute(context.Background(), "/tools missing"); err != nil {
		t.Fatalf("execute tools detail: %v", err)
	}
	if !strings.Contains(out.String(), "Unknown tool: missing") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestHandler_HistoryCommand(t *testing.T) {
	handler, out := newTestHandler()
	handler.conversation.(*stubConversation).pending = []string{"call_9"}

	if err := handler.Execute(context.Background(), "/history"); err != nil {
		t.Fatalf("execute history: %v", err)
	}
	got := out.String()
	for _, want := range []string{"3 messages", "what is 2 + 3?", `add({"a":2,"b":3})`, "[call_1] 5", "awaiting results: call_9"} {
		if !strings.Contains(got, want) {
			t.Fatalf("history output missing %q: %s", want, got)
		}
	}
}

func TestHandler_SaveCommand(t *testing.T) {
	handler, out := newTestHandler()
	path := filepath.Join(t.TempDir(), "my chat.json")

	if err := handler.Execute(context.Background(), `/save "`+path+`"`); err != nil {
		t.Fatalf("execute save: %v", err)
	}
	if !strings.Contains(out.String(), "Transcript saved to "+path) {
		t.Fatalf("unexpected output: %s", out.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	var doc transcript.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if doc.SessionID != "session-1" || doc.Model != "gpt-4o-mini" || len(doc.Messages) != 3 {
		t.Fatalf("unexpected transcript: %+v", doc)
	}
}

func TestHandler_SaveCommand_Usage(t *testing.T) {
	handler, out := newTestHandler()

	if err := handler.Execute(context.Background(), "/save"); err != nil {
		t.Fatalf("execute save: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: /save") {
		t.Fatalf("expected usage, got %q", out.String())
	}
}

func TestHandler_UnknownAndFailedCommands(t *testing.T) {
	handler := NewHandler(nil, nil, nil, "", "")
	if err := handler.Execute(context.Background(), "/tools"); err != nil {
		t.Fatalf("failures are reported, not returned: %v", err)
	}

	out := &bytes.Buffer{}
	handler = NewHandler(nil, nil, out, "", "")
	if err := handler.Execute(context.Background(), "/tools"); err != nil {
		t.Fatalf("execute tools: %v", err)
	}
	if !strings.Contains(out.String(), "Command failed: tool router not initialized") {
		t.Fatalf("unexpected output: %q", out.String())
	}

	out.Reset()
	if err := handler.Execute(context.Background(), "/model gpt-4"); err != nil {
		t.Fatalf("execute unknown: %v", err)
	}
	if !strings.Contains(out.String(), "Unknown command: /model") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
