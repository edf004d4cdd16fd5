package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestREPL_PromptsAndCommands(t *testing.T) {
	provider := &scriptedProvider{turns: [][]contract.StreamChunk{
		{{ToolCalls: []contract.ToolCallDelta{{Index: 0, Name: "add", Arguments: `{"a":2,"b":3}`}}}},
		{{Content: "the answer is 5"}},
	}}
	modelOut := &bytes.Buffer{}
	components := buildTestRuntime(t, provider, modelOut)

	transcriptPath := filepath.Join(t.TempDir(), "session.yaml")
	in := strings.NewReader("what is 2 + 3?\n\n/history\n/exit\nnever read\n")
	out := &bytes.Buffer{}

	require.NoError(t, NewREPL(components, in, out, transcriptPath).Start())

	assert.Equal(t, "the answer is 5", modelOut.String())
	console := out.String()
	assert.Contains(t, console, "toolbridge session "+components.Conversation.ID())
	assert.Contains(t, console, "[CMD] 4 messages")
	assert.Contains(t, console, "[call_0] 5")

	data, err := os.ReadFile(transcriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "the answer is 5")

	assert.Len(t, components.Conversation.History(), 4, "input after /exit is not sent")
}

func TestREPL_EndOfInput(t *testing.T) {
	components := buildTestRuntime(t, &scriptedProvider{}, &bytes.Buffer{})
	out := &bytes.Buffer{}

	require.NoError(t, NewREPL(components, strings.NewReader("hi"), out, "").Start())
	assert.Len(t, components.Conversation.History(), 2)
}

func TestREPL_TurnErrorKeepsSessionOpen(t *testing.T) {
	provider := &scriptedProvider{turns: [][]contract.StreamChunk{
		{{ToolCalls: []contract.ToolCallDelta{{Index: 999, Name: "add"}}}},
		{{Content: "recovered"}},
	}}
	modelOut := &bytes.Buffer{}
	components := buildTestRuntime(t, provider, modelOut)
	out := &bytes.Buffer{}

	require.NoError(t, NewREPL(components, strings.NewReader("first\nsecond\n"), out, "").Start())
	assert.Contains(t, out.String(), "Error: ")
	assert.Contains(t, out.String(), "Hint: the model streamed an unusable tool call")
	assert.Equal(t, "recovered", modelOut.String())
}

func TestErrorHint(t *testing.T) {
	mapper := toolbridgeErrors.NewDefaultErrorMapper()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"transport", toolbridgeErrors.Categorize(errors.New("dial tcp"), "open model stream", toolbridgeErrors.ErrTransport), "check model.base_url"},
		{"max turns", fmt.Errorf("stopped after 3 turns: %w", toolbridgeErrors.ErrMaxTurns), "orchestrator.max_turns"},
		{"invocation", fmt.Errorf("call add: %w", toolbridgeErrors.ErrInvocation), "/tools"},
		{"rate limited", mapper.MapError(errors.New("429 too many requests")), "send the prompt again"},
		{"deadline", mapper.MapError(context.DeadlineExceeded), "temporary failure"},
		{"unclassified", mapper.MapError(errors.New("something odd")), "--log.level debug"},
		{"unknown", errors.New("plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorHint(mapper, tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}
