package mcp

import (
	"fmt"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
)

// Stages reported by ConnectionError.
const (
	StageTransport = "transport"
	StageConnect   = "connect"
	StageListTools = "list_tools"
)

// ConnectionError reports a failed Initialize. It matches ErrConnection and
// unwraps to the underlying SDK or process error.
type ConnectionError struct {
	Server string
	Stage  string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp server %q: %s failed: %v", e.Server, e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{toolbridgeErrors.ErrConnection, e.Err}
}

// InvocationError reports a tool call the provider could not complete.
type InvocationError struct {
	Server string
	Tool   string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("mcp server %q: call %q failed: %v", e.Server, e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() []error {
	return []error{toolbridgeErrors.ErrInvocation, e.Err}
}
