package contract

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"

	ToolTypeFunction = "function"
)

type Message struct {
	Role       string     `json:"role" yaml:"role"`
	Content    string     `json:"content" yaml:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

// ToolCall is a finalized call in the vendor format {id, type: "function", function: {name, arguments}}.
type ToolCall struct {
	ID       string       `json:"id" yaml:"id"`
	Type     string       `json:"type" yaml:"type"`
	Function FunctionCall `json:"function" yaml:"function"`
}

type FunctionCall struct {
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// ToolDescriptor is one entry of a tool provider's catalogue.
type ToolDescriptor struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty" yaml:"input_schema,omitempty"`
}

// ToolDef is the function definition sent to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type CompletionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Tools     []ToolDef `json:"tools,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// StreamChunk is one incremental fragment of a streamed response.
type StreamChunk struct {
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is a partial tool call keyed by its position in the response.
// Empty strings are absent fields.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// TurnResult is the aggregated output of one model turn.
type TurnResult struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (r *TurnResult) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// DescriptorsToDefs converts a catalogue into model function definitions.
func DescriptorsToDefs(descs []ToolDescriptor) []ToolDef {
	if len(descs) == 0 {
		return nil
	}
	defs := make([]ToolDef, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		})
	}
	return defs
}

// ChunkStream yields fragments in arrival order. Recv returns io.EOF after the last fragment.
type ChunkStream interface {
	Recv() (StreamChunk, error)
	Close() error
}
