package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/toolbridge/internal/model/contract"

	"github.com/sashabaranov/go-openai"
)

type Provider struct {
	client *openai.Client
	name   string
}

// New builds a provider against any OpenAI-compatible chat completions endpoint.
// name is reported by Name so that ollama and openai can share this client.
func New(name, apiKey, baseURL string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &Provider{client: openai.NewClientWithConfig(cfg), name: name}
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Stream(ctx context.Context, req contract.CompletionRequest) (contract.ChunkStream, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toMessages(req.Messages),
		Tools:     toTools(req.Tools),
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s stream request failed: %w", p.name, err)
	}
	return &Stream{stream: stream, name: p.name}, nil
}

// Stream adapts a go-openai chat completion stream to contract fragments.
type Stream struct {
	stream *openai.ChatCompletionStream
	name   string
}

func (s *Stream) Recv() (contract.StreamChunk, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return contract.StreamChunk{}, io.EOF
	}
	if err != nil {
		return contract.StreamChunk{}, fmt.Errorf("%s stream interrupted: %w", s.name, err)
	}

	var chunk contract.StreamChunk
	if len(resp.Choices) == 0 {
		return chunk, nil
	}

	delta := resp.Choices[0].Delta
	chunk.Content = delta.Content
	for i, tc := range delta.ToolCalls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		chunk.ToolCalls = append(chunk.ToolCalls, contract.ToolCallDelta{
			Index:     index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return chunk, nil
}

func (s *Stream) Close() error {
	return s.stream.Close()
}

// emptyToolResult stands in for a blank tool result; go-openai drops empty
// content from the request and some servers reject a tool message without it.
const emptyToolResult = "(empty result)"

func toMessages(in []contract.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == contract.RoleTool && m.Content == "" {
			msg.Content = emptyToolResult
		}

		if len(m.ToolCalls) > 0 {
			tcs := make([]openai.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				tcs = append(tcs, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			msg.ToolCalls = tcs
		}

		messages = append(messages, msg)
	}
	return messages
}

func toTools(defs []contract.ToolDef) []openai.Tool {
	var tools []openai.Tool
	for _, t := range defs {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
