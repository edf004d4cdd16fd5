package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/toolbridge/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log          LogConfig          `koanf:"log" yaml:"log"`
	Model        ModelConfig        `koanf:"model" yaml:"model"`
	MCP          MCPConfig          `koanf:"mcp" yaml:"mcp"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator" yaml:"orchestrator"`
	Transcript   TranscriptConfig   `koanf:"transcript" yaml:"transcript"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
}

type ModelConfig struct {
	Provider       string `koanf:"provider" yaml:"provider"`
	Name           string `koanf:"name" yaml:"name"`
	APIKey         string `koanf:"api_key" yaml:"api_key"`
	BaseURL        string `koanf:"base_url" yaml:"base_url"`
	SystemPrompt   string `koanf:"system_prompt" yaml:"system_prompt"`
	MaxTokens      int    `koanf:"max_tokens" yaml:"max_tokens"`
	RequestTimeout string `koanf:"request_timeout" yaml:"request_timeout"`
}

type MCPConfig struct {
	ClientName     string         `koanf:"client_name" yaml:"client_name"`
	ClientVersion  string         `koanf:"client_version" yaml:"client_version"`
	ConnectTimeout string         `koanf:"connect_timeout" yaml:"connect_timeout"`
	Servers        []ServerConfig `koanf:"servers" yaml:"servers"`
}

type ServerConfig struct {
	Name      string   `koanf:"name" yaml:"name"`
	Transport string   `koanf:"transport" yaml:"transport"`
	Command   string   `koanf:"command" yaml:"command"`
	Args      []string `koanf:"args" yaml:"args"`
	Env       []string `koanf:"env" yaml:"env"`
	URL       string   `koanf:"url" yaml:"url"`
}

type OrchestratorConfig struct {
	MaxTurns         int    `koanf:"max_turns" yaml:"max_turns"`
	MaxParallelTools int    `koanf:"max_parallel_tools" yaml:"max_parallel_tools"`
	ToolTimeout      string `koanf:"tool_timeout" yaml:"tool_timeout"`
	AbortOnToolError bool   `koanf:"abort_on_tool_error" yaml:"abort_on_tool_error"`
	MaxToolCallIndex int    `koanf:"max_tool_call_index" yaml:"max_tool_call_index"`
}

type TranscriptConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

const (
	DefaultLogLevel                   = "info"
	DefaultModelProvider              = "openai"
	DefaultModelName                  = "gpt-4o-mini"
	DefaultModelMaxTokens             = 4096
	DefaultModelRequestTimeout        = "120s"
	DefaultOpenAIBaseURL              = "https://api.openai.com/v1"
	DefaultOllamaBaseURL              = "http://localhost:11434/v1"
	DefaultOllamaAPIKey               = "ollama"
	DefaultMCPClientName              = "toolbridge"
	DefaultMCPClientVersion           = "0.0.1"
	DefaultMCPConnectTimeout          = "30s"
	DefaultMCPTransport               = "stdio"
	DefaultOrchestratorMaxTurns       = 10
	DefaultOrchestratorMaxParallel    = 4
	DefaultOrchestratorToolTimeout    = "60s"
	DefaultOrchestratorAbortOnToolErr = false
	DefaultOrchestratorMaxToolCallIdx = 128
	DefaultTranscriptPath             = ""
	DefaultSystemPrompt               = ""
)

// Load resolves configuration from defaults, the YAML config file,
// TOOLBRIDGE_ environment variables and command flags, in that order.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"log.level":                        DefaultLogLevel,
		"model.provider":                   DefaultModelProvider,
		"model.name":                       DefaultModelName,
		"model.system_prompt":              DefaultSystemPrompt,
		"model.max_tokens":                 DefaultModelMaxTokens,
		"model.request_timeout":            DefaultModelRequestTimeout,
		"mcp.client_name":                  DefaultMCPClientName,
		"mcp.client_version":               DefaultMCPClientVersion,
		"mcp.connect_timeout":              DefaultMCPConnectTimeout,
		"orchestrator.max_turns":           DefaultOrchestratorMaxTurns,
		"orchestrator.max_parallel_tools":  DefaultOrchestratorMaxParallel,
		"orchestrator.tool_timeout":        DefaultOrchestratorToolTimeout,
		"orchestrator.abort_on_tool_error": DefaultOrchestratorAbortOnToolErr,
		"orchestrator.max_tool_call_index": DefaultOrchestratorMaxToolCallIdx,
		"transcript.path":                  DefaultTranscriptPath,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		expanded, err := pathutil.Expand(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(expanded), yaml.Parser()); err != nil {
			return nil, err
		}
	} else if globalPath, err := DefaultConfigPath(); err == nil {
		if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
			slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
		}
	}

	// Environment Variables
	k.Load(env.Provider("TOOLBRIDGE_", ".", func(s string) string {
		return envKey(s)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	normalizeServers(&cfg)
	injectStandardEnv(&cfg)

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfigPath returns $HOME/.toolbridge/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".toolbridge", "config.yaml"), nil
}

// envKey maps TOOLBRIDGE_MODEL_API_KEY to model.api_key: the first underscore
// separates the section, the rest belong to the field name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "TOOLBRIDGE_"))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + field
}

func normalizeServers(cfg *Config) {
	for i, s := range cfg.MCP.Servers {
		transport := strings.ToLower(strings.TrimSpace(s.Transport))
		if transport == "" {
			transport = DefaultMCPTransport
		}
		cfg.MCP.Servers[i].Transport = transport
		if strings.TrimSpace(s.Name) == "" {
			cfg.MCP.Servers[i].Name = s.Command
		}
	}
}

// injectStandardEnv fills credentials from the vendors' standard variables
// when the config leaves them empty.
func injectStandardEnv(cfg *Config) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	if provider == "" {
		provider = DefaultModelProvider
	}
	cfg.Model.Provider = provider

	var keyVar, urlVar string
	switch provider {
	case "openai":
		keyVar, urlVar = "OPENAI_API_KEY", "OPENAI_BASE_URL"
	case "anthropic":
		keyVar, urlVar = "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"
	case "gemini":
		keyVar = "GEMINI_API_KEY"
	}

	if keyVar != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv(keyVar)
	}
	if urlVar != "" && cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = os.Getenv(urlVar)
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	transcriptPath, err := pathutil.Expand(cfg.Transcript.Path)
	if err != nil {
		return err
	}
	cfg.Transcript.Path = transcriptPath

	for i, s := range cfg.MCP.Servers {
		if s.Transport != "stdio" || !strings.HasPrefix(strings.TrimSpace(s.Command), "~") {
			continue
		}
		command, err := pathutil.Expand(s.Command)
		if err != nil {
			return err
		}
		cfg.MCP.Servers[i].Command = command
	}

	return nil
}
