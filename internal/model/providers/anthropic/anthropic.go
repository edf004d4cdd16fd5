package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/harunnryd/toolbridge/internal/model/contract"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const defaultMaxTokens = 1024

type Provider struct {
	client anthropic.Client
}

func New(apiKey, baseURL string, opts ...option.RequestOption) *Provider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &Provider{client: anthropic.NewClient(reqOpts...)}
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) Stream(ctx context.Context, req contract.CompletionRequest) (contract.ChunkStream, error) {
	system, messages := toMessages(req.Messages)

	modelName := req.Model
	if modelName == "" {
		modelName = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: maxTokens,
		Messages:  messages,
		Tools:     toTools(req.Tools),
	}
	if len(system) > 0 {
		params.System = system
	}

	// Request errors surface on the first Recv.
	return &Stream{
		stream: p.client.Messages.NewStreaming(ctx, params),
		slots:  make(map[int64]int),
	}, nil
}

// Stream turns content block events into contract fragments. Tool use blocks
// are numbered in the order they start, independent of text blocks.
type Stream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	slots  map[int64]int
}

func (s *Stream) Recv() (contract.StreamChunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return contract.StreamChunk{}, fmt.Errorf("anthropic stream interrupted: %w", err)
		}
		return contract.StreamChunk{}, io.EOF
	}

	var chunk contract.StreamChunk
	switch ev := s.stream.Current().AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			slot := len(s.slots)
			s.slots[ev.Index] = slot
			chunk.ToolCalls = append(chunk.ToolCalls, contract.ToolCallDelta{
				Index: slot,
				ID:    block.ID,
				Name:  block.Name,
			})
		}
	case anthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			chunk.Content = delta.Text
		case anthropic.InputJSONDelta:
			slot, ok := s.slots[ev.Index]
			if !ok {
				return chunk, fmt.Errorf("anthropic stream: input delta for unknown block %d", ev.Index)
			}
			chunk.ToolCalls = append(chunk.ToolCalls, contract.ToolCallDelta{
				Index:     slot,
				Arguments: delta.PartialJSON,
			})
		}
	}
	return chunk, nil
}

func (s *Stream) Close() error {
	return s.stream.Close()
}

func toMessages(in []contract.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, m := range in {
		switch m.Role {
		case contract.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case contract.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Function.Arguments), tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case contract.RoleTool:
			block := anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)
			// Results for one assistant turn share a single user message.
			if n := len(messages); n > 0 && messages[n-1].Role == anthropic.MessageParamRoleUser && isToolResults(messages[n-1]) {
				messages[n-1].Content = append(messages[n-1].Content, block)
				continue
			}
			messages = append(messages, anthropic.NewUserMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	return system, messages
}

func isToolResults(m anthropic.MessageParam) bool {
	for _, block := range m.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return len(m.Content) > 0
}

func toolInput(arguments string) any {
	if arguments != "" && json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	return map[string]any{}
}

func toTools(defs []contract.ToolDef) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, t := range defs {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: map[string]interface{}{}},
		}
		if t.Parameters != nil {
			if props, ok := t.Parameters["properties"].(map[string]interface{}); ok {
				tool.InputSchema.Properties = props
			}
			tool.InputSchema.Required = requiredFields(t.Parameters["required"])
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
