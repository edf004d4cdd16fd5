package model

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/harunnryd/toolbridge/internal/config"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProviderSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ModelConfig
		want    string
		wantErr error
	}{
		{name: "openai", cfg: config.ModelConfig{Provider: "openai", APIKey: "sk"}, want: "openai"},
		{name: "openai without key", cfg: config.ModelConfig{Provider: "openai"}, wantErr: toolbridgeErrors.ErrInvalidInput},
		{name: "ollama without key", cfg: config.ModelConfig{Provider: "ollama"}, want: "ollama"},
		{name: "anthropic", cfg: config.ModelConfig{Provider: "anthropic", APIKey: "k"}, want: "anthropic"},
		{name: "anthropic without key", cfg: config.ModelConfig{Provider: "anthropic"}, wantErr: toolbridgeErrors.ErrInvalidInput},
		{name: "gemini without key", cfg: config.ModelConfig{Provider: "gemini"}, wantErr: toolbridgeErrors.ErrInvalidInput},
		{name: "unknown", cfg: config.ModelConfig{Provider: "palm", APIKey: "k"}, wantErr: toolbridgeErrors.ErrInvalidInput},
		{name: "bad timeout", cfg: config.ModelConfig{Provider: "ollama", RequestTimeout: "forever"}, wantErr: toolbridgeErrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

type ctxStream struct {
	ctx    context.Context
	closed bool
}

func (s *ctxStream) Recv() (contract.StreamChunk, error) {
	if err := s.ctx.Err(); err != nil {
		return contract.StreamChunk{}, err
	}
	return contract.StreamChunk{}, io.EOF
}

func (s *ctxStream) Close() error {
	s.closed = true
	return nil
}

type ctxProvider struct{ last *ctxStream }

func (p *ctxProvider) Name() string { return "fake" }

func (p *ctxProvider) Stream(ctx context.Context, _ contract.CompletionRequest) (contract.ChunkStream, error) {
	p.last = &ctxStream{ctx: ctx}
	return p.last, nil
}

func TestTimeoutProvider_CancelsOnClose(t *testing.T) {
	inner := &ctxProvider{}
	p := &timeoutProvider{StreamProvider: inner, timeout: time.Minute}

	stream, err := p.Stream(context.Background(), contract.CompletionRequest{})
	require.NoError(t, err)

	_, deadline := inner.last.ctx.Deadline()
	assert.True(t, deadline)

	require.NoError(t, stream.Close())
	assert.True(t, inner.last.closed)
	assert.ErrorIs(t, inner.last.ctx.Err(), context.Canceled)
}
