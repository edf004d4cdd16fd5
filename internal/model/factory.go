package model

import (
	"context"
	"time"

	"github.com/harunnryd/toolbridge/internal/config"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"
	anthropicProvider "github.com/harunnryd/toolbridge/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/toolbridge/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/toolbridge/internal/model/providers/openai"
)

// New creates the streaming provider named by cfg.Provider.
func New(ctx context.Context, cfg config.ModelConfig) (StreamProvider, error) {
	provider, err := createProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultModelRequestTimeout)
	if err != nil {
		return nil, toolbridgeErrors.InvalidInput("invalid model.request_timeout: " + err.Error())
	}
	return &timeoutProvider{StreamProvider: provider, timeout: timeout}, nil
}

func createProvider(ctx context.Context, cfg config.ModelConfig) (StreamProvider, error) {
	switch cfg.Provider {
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}

		if cfg.APIKey == "" {
			return nil, toolbridgeErrors.InvalidInput("API key required for OpenAI provider")
		}

		return openaiProvider.New("openai", cfg.APIKey, baseURL), nil

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOllamaBaseURL
		}

		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = config.DefaultOllamaAPIKey
		}

		return openaiProvider.New("ollama", apiKey, baseURL), nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, toolbridgeErrors.InvalidInput("API key required for Anthropic provider")
		}

		return anthropicProvider.New(cfg.APIKey, cfg.BaseURL), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, toolbridgeErrors.InvalidInput("API key required for Gemini provider")
		}

		provider, err := geminiProvider.New(ctx, cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, toolbridgeErrors.Categorize(err, "failed to create Gemini provider", toolbridgeErrors.ErrInternal)
		}

		return provider, nil

	default:
		return nil, toolbridgeErrors.InvalidInput("unsupported model provider: " + cfg.Provider)
	}
}

// timeoutProvider bounds each stream by the configured request timeout.
// The deadline is released when the stream is closed.
type timeoutProvider struct {
	StreamProvider
	timeout time.Duration
}

func (p *timeoutProvider) Stream(ctx context.Context, req contract.CompletionRequest) (contract.ChunkStream, error) {
	if p.timeout <= 0 {
		return p.StreamProvider.Stream(ctx, req)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	stream, err := p.StreamProvider.Stream(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelStream{ChunkStream: stream, cancel: cancel}, nil
}

type cancelStream struct {
	contract.ChunkStream
	cancel context.CancelFunc
}

func (s *cancelStream) Close() error {
	defer s.cancel()
	return s.ChunkStream.Close()
}
