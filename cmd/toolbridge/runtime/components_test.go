package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/toolbridge/internal/config"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/mcp"
	"github.com/harunnryd/toolbridge/internal/mcp/mcptest"
	"github.com/harunnryd/toolbridge/internal/model/contract"
	"github.com/harunnryd/toolbridge/internal/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntimeComponents_ToolsOnly(t *testing.T) {
	components, err := NewRuntimeBuilder().
		WithConfig(testConfig()).
		WithTransport("calc", mcptest.NewServer(t, mcptest.Calculator()...)).
		WithTransport("echo", mcptest.NewServer(t, mcptest.Echo()...)).
		ToolsOnly().
		Build()
	require.NoError(t, err)
	defer components.Stop()

	assert.Len(t, components.Servers, 2)
	assert.Len(t, components.Router.Catalog(), 4)
	assert.Equal(t, "echo", components.Router.Owner("echo"))
	assert.Equal(t, "calc", components.Router.Owner("add"))
	assert.Nil(t, components.Conversation)
	assert.Nil(t, components.Provider)
	assert.NotNil(t, components.Runner)
}

func TestNewRuntimeComponents_ChatRoundTrip(t *testing.T) {
	provider := &scriptedProvider{turns: [][]contract.StreamChunk{
		{{ToolCalls: []contract.ToolCallDelta{{Index: 0, ID: "call_1", Name: "echo", Arguments: `{"text":"pong"}`}}}},
		{{Content: "echo said "}, {Content: "pong"}},
	}}
	out := &bytes.Buffer{}
	components := buildTestRuntime(t, provider, out)

	result, err := components.Loop.Run(components.Ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, "echo said pong", result.Content)
	assert.Equal(t, "echo said pong", out.String())

	history := components.Conversation.History()
	require.Len(t, history, 4)
	assert.Equal(t, contract.Message{Role: contract.RoleTool, Content: "pong", ToolCallID: "call_1"}, history[2])
}

func TestNewRuntimeComponents_SystemPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.MCP.Servers = nil
	cfg.Model.SystemPrompt = "be brief"

	components, err := NewRuntimeBuilder().WithConfig(cfg).WithProvider(&scriptedProvider{}).Build()
	require.NoError(t, err)
	defer components.Stop()

	history := components.Conversation.History()
	require.Len(t, history, 1)
	assert.Equal(t, contract.Message{Role: contract.RoleSystem, Content: "be brief"}, history[0])
}

func TestNewRuntimeComponents_ConnectionFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MCP.Servers = []config.ServerConfig{{Name: "ghost", Transport: "stdio", Command: "/nonexistent/toolbridge-test-server"}}

	_, err := NewRuntimeBuilder().WithConfig(cfg).WithProvider(&scriptedProvider{}).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolbridgeErrors.ErrConnection))
	assert.Contains(t, err.Error(), "ghost")
}

func TestNewRuntimeComponents_InvalidDurations(t *testing.T) {
	cfg := testConfig()
	cfg.MCP.Servers = nil
	cfg.Orchestrator.ToolTimeout = "soon"

	_, err := NewRuntimeBuilder().WithConfig(cfg).WithProvider(&scriptedProvider{}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool_timeout")

	cfg = testConfig()
	cfg.MCP.ConnectTimeout = "later"
	_, err = NewRuntimeBuilder().WithConfig(cfg).WithProvider(&scriptedProvider{}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
}

func TestNewRuntimeComponents_ModelProviderFailure(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := testConfig()
	cfg.MCP.Servers = nil

	_, err := NewRuntimeBuilder().WithConfig(cfg).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolbridgeErrors.ErrInvalidInput))
}

func TestRuntimeComponents_StopShutsDownServers(t *testing.T) {
	components, err := NewRuntimeBuilder().
		WithContext(context.Background()).
		WithConfig(testConfig()).
		WithTransport("calc", mcptest.NewServer(t, mcptest.Calculator()...)).
		WithTransport("echo", mcptest.NewServer(t, mcptest.Echo()...)).
		ToolsOnly().
		Build()
	require.NoError(t, err)

	components.Stop()

	for _, s := range components.Servers {
		assert.Equal(t, mcp.StateClosed, s.State(), s.Name())
	}
	assert.Error(t, components.Ctx.Err())

	// a second stop skips closed servers
	components.Stop()
}

func TestRuntimeComponents_SaveTranscript(t *testing.T) {
	provider := &scriptedProvider{turns: [][]contract.StreamChunk{{{Content: "hello"}}}}
	components := buildTestRuntime(t, provider, &bytes.Buffer{})

	_, err := components.Loop.Run(components.Ctx, "hi")
	require.NoError(t, err)

	path, err := components.SaveTranscript("")
	require.NoError(t, err)
	assert.Empty(t, path)

	target := filepath.Join(t.TempDir(), "chat.json")
	path, err = components.SaveTranscript(target)
	require.NoError(t, err)
	assert.Equal(t, target, path)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var doc transcript.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, components.Conversation.ID(), doc.SessionID)
	assert.Equal(t, "test-model", doc.Model)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "hello", doc.Messages[1].Content)
}
