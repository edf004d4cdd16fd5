package mcp

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// buildTransport resolves a server config into an SDK transport. Stdio
// commands are not bound to a context: the process lives until Shutdown.
func buildTransport(cfg ServerConfig) (mcpsdk.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportStdio:
		return buildStdioTransport(cfg)
	case TransportSSE:
		endpoint, err := normalizeHTTPURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid SSE endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	case TransportHTTP, "streamable":
		endpoint, err := normalizeHTTPURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTP endpoint: %w", err)
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func buildStdioTransport(cfg ServerConfig) (mcpsdk.Transport, error) {
	name, args, err := commandLine(cfg.Command, cfg.Args)
	if err != nil {
		return nil, err
	}

	// #nosec G204 -- command comes from the operator's server config
	command := exec.Command(name, args...)
	if len(cfg.Env) > 0 {
		command.Env = append(os.Environ(), cfg.Env...)
	}
	command.Stderr = os.Stderr
	return &mcpsdk.CommandTransport{Command: command}, nil
}

// commandLine splits command with shell quoting rules when no explicit args
// are configured, so "npx -y server" works as a single string.
func commandLine(command string, args []string) (string, []string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", nil, fmt.Errorf("stdio command is empty")
	}
	if len(args) > 0 {
		return command, args, nil
	}

	parts, err := shlex.Split(command)
	if err != nil {
		return "", nil, fmt.Errorf("parse stdio command: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("stdio command is empty")
	}
	return parts[0], parts[1:], nil
}

func normalizeHTTPURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}
