package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Provider is a connected tool server. *mcp.Session implements it.
type Provider interface {
	Name() string
	ListTools() ([]contract.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error)
}

// Router maps tool names to the provider that offers them and keeps the
// merged catalogue in registration order.
type Router struct {
	mu      sync.RWMutex
	owners  map[string]Provider
	catalog []contract.ToolDescriptor
}

func NewRouter() *Router {
	return &Router{
		owners: make(map[string]Provider),
	}
}

// Register adds every tool of p. A name already offered by an earlier
// provider keeps its first owner.
func (r *Router) Register(p Provider) error {
	tools, err := p.ListTools()
	if err != nil {
		return fmt.Errorf("list tools of %q: %w", p.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		name := NormalizeToolName(t.Name)
		if name == "" {
			slog.Warn("Skipping tool with empty name", "server", p.Name())
			continue
		}
		if owner, exists := r.owners[name]; exists {
			slog.Warn("Duplicate tool name, keeping first server", "tool", name, "server", p.Name(), "owner", owner.Name())
			continue
		}
		r.owners[name] = p
		t.Name = name
		r.catalog = append(r.catalog, t)
	}
	return nil
}

func (r *Router) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.owners[NormalizeToolName(name)]
	return p, ok
}

// Catalog returns the merged catalogue.
func (r *Router) Catalog() []contract.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]contract.ToolDescriptor(nil), r.catalog...)
}

// Owner returns the server name offering a tool, or "".
func (r *Router) Owner(name string) string {
	if p, ok := r.Get(name); ok {
		return p.Name()
	}
	return ""
}

// Call routes a call to the owning provider. Unknown names fail as
// invocation errors so the caller can report them to the model.
func (r *Router) Call(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %q is not offered by any server: %w: %w", name, toolbridgeErrors.ErrInvocation, toolbridgeErrors.ErrNotFound)
	}
	return p.CallTool(ctx, NormalizeToolName(name), args)
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
