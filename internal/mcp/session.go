package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/toolbridge/internal/config"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ServerConfig describes one tool provider and how to reach it.
type ServerConfig struct {
	Name          string
	Transport     string
	Command       string
	Args          []string
	Env           []string
	URL           string
	ClientName    string
	ClientVersion string
}

// ServerConfigFrom combines a configured server with the client identity.
func ServerConfigFrom(mcpCfg config.MCPConfig, s config.ServerConfig) ServerConfig {
	return ServerConfig{
		Name:          s.Name,
		Transport:     s.Transport,
		Command:       s.Command,
		Args:          append([]string(nil), s.Args...),
		Env:           append([]string(nil), s.Env...),
		URL:           s.URL,
		ClientName:    mcpCfg.ClientName,
		ClientVersion: mcpCfg.ClientVersion,
	}
}

type Option func(*Session)

// WithTransport bypasses transport construction from the config.
func WithTransport(t mcpsdk.Transport) Option {
	return func(s *Session) {
		s.transport = t
	}
}

// Session is one live connection to an MCP server and its cached catalogue.
type Session struct {
	cfg       ServerConfig
	transport mcpsdk.Transport

	mu      sync.RWMutex
	state   State
	client  *mcpsdk.ClientSession
	catalog []contract.ToolDescriptor
}

func NewSession(cfg ServerConfig, opts ...Option) *Session {
	if cfg.ClientName == "" {
		cfg.ClientName = config.DefaultMCPClientName
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = config.DefaultMCPClientVersion
	}

	s := &Session{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Name() string {
	return s.cfg.Name
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize connects to the server and caches its full tool catalogue.
// Any failure is fatal to the session and returned as *ConnectionError.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return toolbridgeErrors.InvalidState(fmt.Sprintf("mcp server %q: initialize called in state %s", s.cfg.Name, s.state))
	}

	transport := s.transport
	if transport == nil {
		built, err := buildTransport(s.cfg)
		if err != nil {
			s.state = StateClosed
			return &ConnectionError{Server: s.cfg.Name, Stage: StageTransport, Err: err}
		}
		transport = built
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: s.cfg.ClientName, Version: s.cfg.ClientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		s.state = StateClosed
		return &ConnectionError{Server: s.cfg.Name, Stage: StageConnect, Err: err}
	}

	var catalog []contract.ToolDescriptor
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			s.state = StateClosed
			return &ConnectionError{Server: s.cfg.Name, Stage: StageListTools, Err: err}
		}
		catalog = append(catalog, toDescriptor(tool))
	}

	s.client = session
	s.catalog = catalog
	s.state = StateReady

	slog.Debug("MCP session ready", "server", s.cfg.Name, "tools", len(catalog))
	return nil
}

// ListTools returns the catalogue fetched by Initialize.
func (s *Session) ListTools() ([]contract.ToolDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return nil, toolbridgeErrors.InvalidState(fmt.Sprintf("mcp server %q: list tools in state %s", s.cfg.Name, s.state))
	}
	return append([]contract.ToolDescriptor(nil), s.catalog...), nil
}

// CallTool forwards a call by name. Arguments are not checked against the
// input schema. Results flagged IsError are returned as results.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	s.mu.RLock()
	client, state := s.client, s.state
	s.mu.RUnlock()

	if state != StateReady {
		return nil, toolbridgeErrors.InvalidState(fmt.Sprintf("mcp server %q: call tool in state %s", s.cfg.Name, state))
	}

	result, err := client.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, &InvocationError{Server: s.cfg.Name, Tool: name, Err: err}
	}
	if result == nil {
		return nil, &InvocationError{Server: s.cfg.Name, Tool: name, Err: fmt.Errorf("empty result")}
	}
	return result, nil
}

// Shutdown closes the connection. Calling it twice is an error.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return toolbridgeErrors.InvalidState(fmt.Sprintf("mcp server %q: already shut down", s.cfg.Name))
	case StateUninitialized:
		s.state = StateClosed
		return nil
	}

	s.state = StateClosed
	err := s.client.Close()
	s.client = nil
	return err
}

func toDescriptor(tool *mcpsdk.Tool) contract.ToolDescriptor {
	desc := contract.ToolDescriptor{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema == nil {
		return desc
	}

	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return desc
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err == nil {
		desc.InputSchema = schema
	}
	return desc
}
