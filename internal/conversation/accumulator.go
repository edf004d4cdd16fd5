package conversation

import (
	"fmt"
	"strings"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"
)

// pendingToolCall is a tool call still being assembled from fragments.
type pendingToolCall struct {
	id        strings.Builder
	name      strings.Builder
	arguments strings.Builder
	sighted   bool
}

// turnAccumulator collects one turn's fragments. It is owned by the receive
// loop and applies exactly one chunk per call to apply.
type turnAccumulator struct {
	content  strings.Builder
	calls    []*pendingToolCall
	maxIndex int
}

func newTurnAccumulator(maxIndex int) *turnAccumulator {
	return &turnAccumulator{maxIndex: maxIndex}
}

// apply folds a chunk into the accumulator and returns the text to surface
// on the live sink.
func (a *turnAccumulator) apply(chunk contract.StreamChunk) (string, error) {
	a.content.WriteString(chunk.Content)

	for _, delta := range chunk.ToolCalls {
		if delta.Index < 0 || delta.Index > a.maxIndex {
			return "", toolbridgeErrors.MalformedFragment(
				fmt.Sprintf("tool call index %d outside [0, %d]", delta.Index, a.maxIndex))
		}

		slot := a.slot(delta.Index)
		slot.sighted = true
		slot.id.WriteString(delta.ID)
		slot.name.WriteString(delta.Name)
		slot.arguments.WriteString(delta.Arguments)
	}

	return chunk.Content, nil
}

// slot pads the pending slice with blank entries so index is addressable.
func (a *turnAccumulator) slot(index int) *pendingToolCall {
	for len(a.calls) <= index {
		a.calls = append(a.calls, &pendingToolCall{})
	}
	return a.calls[index]
}

// finalize converts pending calls into vendor-format tool calls ordered by
// index. Padding slots never sighted are reported in dropped.
func (a *turnAccumulator) finalize() (result contract.TurnResult, dropped []int) {
	result.Content = a.content.String()

	taken := make(map[string]bool, len(a.calls))
	for _, call := range a.calls {
		if call.sighted && call.id.Len() > 0 {
			taken[call.id.String()] = true
		}
	}

	for index, call := range a.calls {
		if !call.sighted {
			dropped = append(dropped, index)
			continue
		}

		id := call.id.String()
		if id == "" {
			id = synthesizeID(index, taken)
			taken[id] = true
		}

		result.ToolCalls = append(result.ToolCalls, contract.ToolCall{
			ID:   id,
			Type: contract.ToolTypeFunction,
			Function: contract.FunctionCall{
				Name:      call.name.String(),
				Arguments: call.arguments.String(),
			},
		})
	}

	return result, dropped
}

// synthesizeID returns call_<index>, suffixed when the model already used
// that id for another call in the same turn.
func synthesizeID(index int, taken map[string]bool) string {
	id := fmt.Sprintf("call_%d", index)
	for n := 1; taken[id]; n++ {
		id = fmt.Sprintf("call_%d_%d", index, n)
	}
	return id
}
