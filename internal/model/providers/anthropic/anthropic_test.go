package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/toolbridge/internal/model/contract"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var events = []struct{ name, data string }{
	{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude","stop_reason":null,"usage":{"input_tokens":1,"output_tokens":1}}}`},
	{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Adding."}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"add","input":{}}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":2,"}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"b\":3}"}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":1}`},
	{"message_stop", `{"type":"message_stop"}`},
}

func TestProvider_StreamMapsBlocksToSlots(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
	defer server.Close()

	p := New("sk-ant", server.URL, option.WithMaxRetries(0))
	assert.Equal(t, "anthropic", p.Name())

	stream, err := p.Stream(context.Background(), contract.CompletionRequest{
		Model: "claude-test",
		Messages: []contract.Message{
			{Role: contract.RoleSystem, Content: "be brief"},
			{Role: contract.RoleUser, Content: "add 2 and 3"},
		},
		Tools: []contract.ToolDef{{
			Name:        "add",
			Description: "adds",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"a": map[string]interface{}{"type": "number"}},
				"required":   []interface{}{"a"},
			},
		}},
	})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	var deltas []contract.ToolCallDelta
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		text += chunk.Content
		deltas = append(deltas, chunk.ToolCalls...)
	}

	assert.Equal(t, "Adding.", text)
	require.Len(t, deltas, 3)
	assert.Equal(t, contract.ToolCallDelta{Index: 0, ID: "toolu_1", Name: "add"}, deltas[0])
	assert.Equal(t, 0, deltas[1].Index, "tool block index 1 becomes slot 0")
	assert.Equal(t, `{"a":2,"b":3}`, deltas[1].Arguments+deltas[2].Arguments)

	require.NotNil(t, body)
	assert.Equal(t, "claude-test", body["model"])
	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
	assert.Len(t, body["messages"].([]any), 1)
}

func TestToMessages_GroupsToolResults(t *testing.T) {
	_, msgs := toMessages([]contract.Message{
		{Role: contract.RoleUser, Content: "go"},
		{Role: contract.RoleAssistant, ToolCalls: []contract.ToolCall{
			{ID: "t1", Function: contract.FunctionCall{Name: "a", Arguments: `{"x":1}`}},
			{ID: "t2", Function: contract.FunctionCall{Name: "b", Arguments: "not json"}},
		}},
		{Role: contract.RoleTool, ToolCallID: "t1", Content: "one"},
		{Role: contract.RoleTool, ToolCallID: "t2", Content: "two"},
	})

	require.Len(t, msgs, 3)
	assert.Len(t, msgs[1].Content, 2, "assistant without text carries only tool_use blocks")
	assert.Len(t, msgs[2].Content, 2, "consecutive results share one user message")
	assert.Equal(t, "t2", msgs[2].Content[1].OfToolResult.ToolUseID)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, requiredFields([]any{"a", 1, "b"}))
	assert.Equal(t, []string{"x"}, requiredFields([]string{"x"}))
	assert.Nil(t, requiredFields(nil))
}
