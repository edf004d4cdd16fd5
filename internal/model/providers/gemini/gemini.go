package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/harunnryd/toolbridge/internal/model/contract"

	"google.golang.org/genai"
)

type Provider struct {
	client *genai.Client
}

func New(ctx context.Context, apiKey, baseURL string) (*Provider, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) Stream(ctx context.Context, req contract.CompletionRequest) (contract.ChunkStream, error) {
	system, contents := toContents(req.Messages)

	config := &genai.GenerateContentConfig{
		Tools:             toTools(req.Tools),
		SystemInstruction: system,
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	next, stop := iter.Pull2(p.client.Models.GenerateContentStream(ctx, req.Model, contents, config))
	return &Stream{next: next, stop: stop}, nil
}

// Stream pulls responses from the SDK iterator. Gemini delivers each function
// call whole, so every call gets its own slot in arrival order.
type Stream struct {
	next  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	slots int
}

func (s *Stream) Recv() (contract.StreamChunk, error) {
	resp, err, ok := s.next()
	if !ok {
		return contract.StreamChunk{}, io.EOF
	}
	if err != nil {
		return contract.StreamChunk{}, fmt.Errorf("gemini stream interrupted: %w", err)
	}

	var chunk contract.StreamChunk
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return chunk, nil
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			chunk.Content += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			slot := s.slots
			s.slots++
			args, err := json.Marshal(fc.Args)
			if err != nil || fc.Args == nil {
				args = []byte("{}")
			}
			chunk.ToolCalls = append(chunk.ToolCalls, contract.ToolCallDelta{
				Index:     slot,
				ID:        fc.ID,
				Name:      fc.Name,
				Arguments: string(args),
			})
		}
	}
	return chunk, nil
}

func (s *Stream) Close() error {
	s.stop()
	return nil
}

func toContents(in []contract.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	var contents []*genai.Content

	// function responses need the name of the call they answer
	callNames := make(map[string]string)

	for _, m := range in {
		switch m.Role {
		case contract.RoleSystem:
			if system == nil {
				system = &genai.Content{Role: genai.RoleUser}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
		case contract.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Function.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: args,
				}})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case contract.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     callNames[m.ToolCallID],
				Response: map[string]any{"output": m.Content},
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == genai.RoleUser && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	return system, contents
}

func isFunctionResponses(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return len(c.Parts) > 0
}

func toTools(defs []contract.ToolDef) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, t := range defs {
		decl := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if t.Parameters != nil {
			decl.ParametersJsonSchema = t.Parameters
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
