package runtime

import (
	"bytes"
	"context"
	"testing"

	"github.com/harunnryd/toolbridge/internal/config"
)

func TestNewRuntimeBuilder(t *testing.T) {
	builder := NewRuntimeBuilder()
	if builder == nil {
		t.Error("NewRuntimeBuilder() returned nil")
	}
}

func TestBuilder_WithMethods(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	out := &bytes.Buffer{}
	provider := &scriptedProvider{}

	builder := NewRuntimeBuilder().
		WithContext(ctx).
		WithConfig(cfg).
		WithOutput(out).
		WithProvider(provider).
		ToolsOnly()

	impl, ok := builder.(*DefaultRuntimeBuilder)
	if !ok {
		t.Fatal("Builder is not DefaultRuntimeBuilder")
	}

	if impl.ctx != ctx {
		t.Error("WithContext did not set context")
	}
	if impl.cfg != cfg {
		t.Error("WithConfig did not set config")
	}
	if impl.output != out {
		t.Error("WithOutput did not set output")
	}
	if impl.provider != provider {
		t.Error("WithProvider did not set provider")
	}
	if !impl.toolsOnly {
		t.Error("ToolsOnly did not set tools-only mode")
	}
}

func TestBuilder_Build_MissingConfig(t *testing.T) {
	builder := NewRuntimeBuilder().
		WithContext(context.Background())

	_, err := builder.Build()
	if err == nil {
		t.Error("Build() should return error when config is missing")
	}
}

func TestBuilder_Build_NoServers(t *testing.T) {
	components, err := NewRuntimeBuilder().
		WithConfig(&config.Config{}).
		WithProvider(&scriptedProvider{}).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	defer components.Stop()

	if components.Ctx == nil {
		t.Error("Ctx is nil")
	}
	if components.Conversation == nil || components.Loop == nil {
		t.Error("chat components should be built")
	}
	if len(components.Router.Catalog()) != 0 {
		t.Error("catalogue should be empty without servers")
	}
}
