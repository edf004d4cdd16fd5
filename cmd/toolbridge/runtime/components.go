package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/harunnryd/toolbridge/internal/config"
	"github.com/harunnryd/toolbridge/internal/conversation"
	"github.com/harunnryd/toolbridge/internal/mcp"
	"github.com/harunnryd/toolbridge/internal/model"
	"github.com/harunnryd/toolbridge/internal/orchestrator"
	"github.com/harunnryd/toolbridge/internal/tool"
	"github.com/harunnryd/toolbridge/internal/transcript"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type Options struct {
	Output     io.Writer
	Provider   model.StreamProvider
	Transports map[string]mcpsdk.Transport
	ToolsOnly  bool
}

type RuntimeComponents struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config *config.Config

	Servers []*mcp.Session
	Router  *tool.Router
	Runner  *tool.Runner

	Provider     model.StreamProvider
	Conversation *conversation.Session
	Loop         *orchestrator.Loop
}

func NewRuntimeComponents(ctx context.Context, cfg *config.Config, opts Options) (*RuntimeComponents, error) {
	cancel := func() {}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel = context.WithCancel(ctx)

	components := &RuntimeComponents{
		Ctx:    ctx,
		Cancel: cancel,
		Config: cfg,
		Router: tool.NewRouter(),
	}

	if err := components.connectServers(opts.Transports); err != nil {
		components.cleanup()
		return nil, err
	}

	toolTimeout, err := config.DurationOrDefault(cfg.Orchestrator.ToolTimeout, config.DefaultOrchestratorToolTimeout)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("invalid orchestrator.tool_timeout: %w", err)
	}
	components.Runner = tool.NewRunner(components.Router, toolTimeout)

	if opts.ToolsOnly {
		slog.Debug("Tool runtime initialized", "servers", len(components.Servers), "tools", len(components.Router.Catalog()))
		return components, nil
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = model.New(ctx, cfg.Model)
		if err != nil {
			components.cleanup()
			return nil, fmt.Errorf("init model provider: %w", err)
		}
	}
	components.Provider = provider

	output := opts.Output
	if output == nil {
		output = io.Discard
	}

	components.Conversation = conversation.New(provider, conversation.Config{
		Model:            cfg.Model.Name,
		SystemPrompt:     cfg.Model.SystemPrompt,
		MaxTokens:        cfg.Model.MaxTokens,
		MaxToolCallIndex: cfg.Orchestrator.MaxToolCallIndex,
	}, conversation.WithOutput(output), conversation.WithTools(components.Router.Catalog()))

	components.Loop = orchestrator.New(components.Conversation, components.Runner, orchestrator.Config{
		MaxTurns:         cfg.Orchestrator.MaxTurns,
		MaxParallelTools: cfg.Orchestrator.MaxParallelTools,
		AbortOnToolError: cfg.Orchestrator.AbortOnToolError,
	})

	slog.Info("Runtime components initialized successfully",
		"provider", provider.Name(),
		"model", cfg.Model.Name,
		"servers", len(components.Servers),
		"tools", len(components.Router.Catalog()),
		"session_id", components.Conversation.ID())
	return components, nil
}

// connectServers initializes every configured MCP server and registers its
// catalogue. The first failure aborts startup.
func (r *RuntimeComponents) connectServers(transports map[string]mcpsdk.Transport) error {
	connectTimeout, err := config.DurationOrDefault(r.Config.MCP.ConnectTimeout, config.DefaultMCPConnectTimeout)
	if err != nil {
		return fmt.Errorf("invalid mcp.connect_timeout: %w", err)
	}

	for _, serverCfg := range r.Config.MCP.Servers {
		var opts []mcp.Option
		if t, ok := transports[serverCfg.Name]; ok {
			opts = append(opts, mcp.WithTransport(t))
		}
		session := mcp.NewSession(mcp.ServerConfigFrom(r.Config.MCP, serverCfg), opts...)

		ctx, cancel := context.WithTimeout(r.Ctx, connectTimeout)
		err := session.Initialize(ctx)
		cancel()
		if err != nil {
			logConnectionFailure(serverCfg, err)
			return fmt.Errorf("init mcp server %s: %w", serverCfg.Name, err)
		}
		r.Servers = append(r.Servers, session)

		if err := r.Router.Register(session); err != nil {
			return fmt.Errorf("register mcp server %s: %w", serverCfg.Name, err)
		}
		slog.Info("MCP server connected", "server", serverCfg.Name, "transport", serverCfg.Transport)
	}
	return nil
}

func logConnectionFailure(serverCfg config.ServerConfig, err error) {
	attrs := []any{"server", serverCfg.Name, "transport", serverCfg.Transport, "error", err}

	var connErr *mcp.ConnectionError
	if errors.As(err, &connErr) {
		attrs = append(attrs, "stage", connErr.Stage)
	}
	switch serverCfg.Transport {
	case mcp.TransportStdio:
		attrs = append(attrs, "command", serverCfg.Command, "args", serverCfg.Args)
	default:
		attrs = append(attrs, "url", serverCfg.URL)
	}

	slog.Error("MCP server connection failed", attrs...)
}

func (r *RuntimeComponents) Stop() {
	slog.Debug("Stopping runtime components...")

	r.Cancel()

	for _, session := range r.Servers {
		if session.State() != mcp.StateReady {
			continue
		}
		if err := session.Shutdown(); err != nil {
			slog.Warn("Failed to shut down MCP server", "server", session.Name(), "error", err)
		}
	}

	slog.Debug("Runtime components stopped")
}

func (r *RuntimeComponents) cleanup() {
	slog.Debug("Cleaning up runtime components...")
	r.Stop()
}

// SaveTranscript writes the conversation history to path when path is set.
func (r *RuntimeComponents) SaveTranscript(path string) (string, error) {
	if path == "" || r.Conversation == nil {
		return "", nil
	}
	return transcript.Write(path, transcript.Document{
		SessionID: r.Conversation.ID(),
		Provider:  r.Config.Model.Provider,
		Model:     r.Config.Model.Name,
		Messages:  r.Conversation.History(),
	})
}
