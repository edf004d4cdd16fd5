package runtime

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/harunnryd/toolbridge/internal/config"
	"github.com/harunnryd/toolbridge/internal/mcp/mcptest"
	"github.com/harunnryd/toolbridge/internal/model/contract"

	"github.com/stretchr/testify/require"
)

type chunkStream struct {
	chunks []contract.StreamChunk
}

func (s *chunkStream) Recv() (contract.StreamChunk, error) {
	if len(s.chunks) == 0 {
		return contract.StreamChunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *chunkStream) Close() error { return nil }

// scriptedProvider replays one scripted turn per request and answers
// "done" once the script runs out.
type scriptedProvider struct {
	mu    sync.Mutex
	turns [][]contract.StreamChunk
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Stream(context.Context, contract.CompletionRequest) (contract.ChunkStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.turns) == 0 {
		return &chunkStream{chunks: []contract.StreamChunk{{Content: "done"}}}, nil
	}
	turn := p.turns[0]
	p.turns = p.turns[1:]
	return &chunkStream{chunks: turn}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Model: config.ModelConfig{Provider: "openai", Name: "test-model"},
		MCP: config.MCPConfig{
			Servers: []config.ServerConfig{
				{Name: "calc", Transport: "stdio", Command: "calc-server"},
				{Name: "echo", Transport: "stdio", Command: "echo-server"},
			},
		},
	}
}

func buildTestRuntime(t *testing.T, provider *scriptedProvider, output io.Writer) *RuntimeComponents {
	t.Helper()

	components, err := NewRuntimeBuilder().
		WithContext(context.Background()).
		WithConfig(testConfig()).
		WithOutput(output).
		WithProvider(provider).
		WithTransport("calc", mcptest.NewServer(t, mcptest.Calculator()...)).
		WithTransport("echo", mcptest.NewServer(t, mcptest.Echo()...)).
		Build()
	require.NoError(t, err)
	t.Cleanup(components.Stop)
	return components
}
