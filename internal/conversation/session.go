package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/harunnryd/toolbridge/internal/config"
	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/logger"
	"github.com/harunnryd/toolbridge/internal/model"
	"github.com/harunnryd/toolbridge/internal/model/contract"
)

type State int

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config is everything a session needs besides the provider itself.
type Config struct {
	Model            string
	SystemPrompt     string
	MaxTokens        int
	MaxToolCallIndex int
}

type Option func(*Session)

// WithTools sets the initial tool catalogue.
func WithTools(tools []contract.ToolDescriptor) Option {
	return func(s *Session) {
		s.tools = append([]contract.ToolDescriptor(nil), tools...)
	}
}

// WithOutput sets the sink that receives text fragments as they arrive.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		if w != nil {
			s.output = w
		}
	}
}

// Session owns the message history of one conversation and turns each
// streamed model response into a single TurnResult.
type Session struct {
	id       string
	provider model.StreamProvider
	cfg      Config
	output   io.Writer

	mu      sync.Mutex
	state   State
	history []contract.Message
	tools   []contract.ToolDescriptor
}

func New(provider model.StreamProvider, cfg Config, opts ...Option) *Session {
	if cfg.MaxToolCallIndex <= 0 {
		cfg.MaxToolCallIndex = config.DefaultOrchestratorMaxToolCallIdx
	}

	s := &Session{
		id:       logger.NewID(),
		provider: provider,
		cfg:      cfg,
		output:   io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.SystemPrompt != "" {
		s.history = append(s.history, contract.Message{Role: contract.RoleSystem, Content: cfg.SystemPrompt})
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetTools replaces the catalogue offered to the model on later turns.
func (s *Session) SetTools(tools []contract.ToolDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append([]contract.ToolDescriptor(nil), tools...)
}

// History returns a copy of the conversation so far.
func (s *Session) History() []contract.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contract.Message, len(s.history))
	for i, m := range s.history {
		out[i] = m.Clone()
	}
	return out
}

// PendingToolCalls lists ids from the latest assistant message that have no
// tool result yet.
func (s *Session) PendingToolCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// RequestTurn appends prompt as a user message when non-empty, streams the
// model response and appends it as one assistant message. On failure no
// assistant message is appended.
func (s *Session) RequestTurn(ctx context.Context, prompt string) (*contract.TurnResult, error) {
	ctx = logger.WithSessionID(ctx, s.id)
	ctx = logger.WithTraceID(ctx, logger.NewID())
	log := logger.FromContext(ctx)

	req, err := s.beginTurn(prompt)
	if err != nil {
		return nil, err
	}
	defer s.endTurn()

	log.Debug("Requesting turn", "provider", s.provider.Name(), "messages", len(req.Messages), "tools", len(req.Tools))

	stream, err := s.provider.Stream(ctx, req)
	if err != nil {
		return nil, toolbridgeErrors.Categorize(err, "open model stream", toolbridgeErrors.ErrTransport)
	}
	defer stream.Close()

	acc := newTurnAccumulator(s.cfg.MaxToolCallIndex)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toolbridgeErrors.Categorize(err, "model stream interrupted", toolbridgeErrors.ErrTransport)
		}

		text, err := acc.apply(chunk)
		if err != nil {
			return nil, err
		}
		if text != "" {
			if _, werr := io.WriteString(s.output, text); werr != nil {
				log.Warn("Failed to write to output sink", "error", werr)
			}
		}
	}

	result, dropped := acc.finalize()
	if len(dropped) > 0 {
		log.Warn("Dropped tool call slots that received no fragments", "indices", dropped)
	}

	s.mu.Lock()
	s.history = append(s.history, contract.Message{
		Role:      contract.RoleAssistant,
		Content:   result.Content,
		ToolCalls: result.ToolCalls,
	})
	s.mu.Unlock()

	log.Debug("Turn completed", "content_len", len(result.Content), "tool_calls", len(result.ToolCalls))
	return &result, nil
}

// AppendToolResult records the output of a tool call from the latest
// assistant message. Unknown or already answered ids are rejected.
func (s *Session) AppendToolResult(toolCallID, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return toolbridgeErrors.InvalidState("cannot append tool result while a turn is streaming")
	}

	pending := false
	for _, id := range s.pendingLocked() {
		if id == toolCallID {
			pending = true
			break
		}
	}
	if !pending {
		return fmt.Errorf("%w: %w: %q", toolbridgeErrors.ErrUnknownToolCall, toolbridgeErrors.ErrInvalidInput, toolCallID)
	}

	s.history = append(s.history, contract.Message{
		Role:       contract.RoleTool,
		Content:    output,
		ToolCallID: toolCallID,
	})
	return nil
}

func (s *Session) beginTurn(prompt string) (contract.CompletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStreaming {
		return contract.CompletionRequest{}, toolbridgeErrors.InvalidState("a turn is already streaming")
	}
	if pending := s.pendingLocked(); len(pending) > 0 {
		return contract.CompletionRequest{}, toolbridgeErrors.InvalidInput(
			fmt.Sprintf("%d tool call(s) still need results: %v", len(pending), pending))
	}

	if prompt != "" {
		s.history = append(s.history, contract.Message{Role: contract.RoleUser, Content: prompt})
	}
	s.state = StateStreaming

	messages := make([]contract.Message, len(s.history))
	for i, m := range s.history {
		messages[i] = m.Clone()
	}

	return contract.CompletionRequest{
		Model:     s.cfg.Model,
		Messages:  messages,
		Tools:     contract.DescriptorsToDefs(s.tools),
		MaxTokens: s.cfg.MaxTokens,
	}, nil
}

func (s *Session) endTurn() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Session) pendingLocked() []string {
	last := -1
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Role == contract.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 {
		return nil
	}

	answered := make(map[string]bool)
	for _, m := range s.history[last+1:] {
		if m.Role == contract.RoleTool {
			answered[m.ToolCallID] = true
		}
	}

	var pending []string
	for _, tc := range s.history[last].ToolCalls {
		if !answered[tc.ID] {
			pending = append(pending, tc.ID)
		}
	}
	return pending
}
