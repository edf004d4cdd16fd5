package runtime

import (
	"context"
	"fmt"
	"io"

	"github.com/harunnryd/toolbridge/internal/config"
	"github.com/harunnryd/toolbridge/internal/model"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type RuntimeBuilder interface {
	WithContext(ctx context.Context) RuntimeBuilder
	WithConfig(cfg *config.Config) RuntimeBuilder
	WithOutput(w io.Writer) RuntimeBuilder
	WithProvider(p model.StreamProvider) RuntimeBuilder
	WithTransport(server string, t mcpsdk.Transport) RuntimeBuilder
	ToolsOnly() RuntimeBuilder
	Build() (*RuntimeComponents, error)
}

type DefaultRuntimeBuilder struct {
	ctx        context.Context
	cfg        *config.Config
	output     io.Writer
	provider   model.StreamProvider
	transports map[string]mcpsdk.Transport
	toolsOnly  bool
}

func NewRuntimeBuilder() RuntimeBuilder {
	return &DefaultRuntimeBuilder{}
}

func (b *DefaultRuntimeBuilder) WithContext(ctx context.Context) RuntimeBuilder {
	b.ctx = ctx
	return b
}

func (b *DefaultRuntimeBuilder) WithConfig(cfg *config.Config) RuntimeBuilder {
	b.cfg = cfg
	return b
}

// WithOutput sets the sink for live model text.
func (b *DefaultRuntimeBuilder) WithOutput(w io.Writer) RuntimeBuilder {
	b.output = w
	return b
}

// WithProvider replaces the provider that model.New would create.
func (b *DefaultRuntimeBuilder) WithProvider(p model.StreamProvider) RuntimeBuilder {
	b.provider = p
	return b
}

// WithTransport connects the named server over t instead of its configured transport.
func (b *DefaultRuntimeBuilder) WithTransport(server string, t mcpsdk.Transport) RuntimeBuilder {
	if b.transports == nil {
		b.transports = make(map[string]mcpsdk.Transport)
	}
	b.transports[server] = t
	return b
}

// ToolsOnly skips the model provider and conversation.
func (b *DefaultRuntimeBuilder) ToolsOnly() RuntimeBuilder {
	b.toolsOnly = true
	return b
}

func (b *DefaultRuntimeBuilder) Build() (*RuntimeComponents, error) {
	if b.ctx == nil {
		b.ctx = context.Background()
	}

	if b.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if b.output == nil {
		b.output = io.Discard
	}

	components, err := NewRuntimeComponents(b.ctx, b.cfg, Options{
		Output:     b.output,
		Provider:   b.provider,
		Transports: b.transports,
		ToolsOnly:  b.toolsOnly,
	})
	if err != nil {
		return nil, err
	}

	return components, nil
}
