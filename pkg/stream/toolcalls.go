package stream

import (
	"sort"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

// ToolCallAccumulator reassembles positionally-indexed tool-call fragments
// into a finalized, ordered list of message.ToolCall. Fragments with the
// same index accumulate: id, type and name are overwritten by every fragment
// that carries a non-empty value, and function arguments are concatenated.
type ToolCallAccumulator struct {
	byIndex map[int]*builder
	order   []int
}

type builder struct {
	id, kind, name, args string
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{byIndex: make(map[int]*builder)}
}

// Add folds one fragment into the accumulator. A fragment with a nil Index
// is treated as index 0, matching providers that never fragment (a single
// complete tool call emitted as one "delta").
func (a *ToolCallAccumulator) Add(fragment message.ToolCall) {
	idx := 0
	if fragment.Index != nil {
		idx = *fragment.Index
	}
	b, ok := a.byIndex[idx]
	if !ok {
		b = &builder{}
		a.byIndex[idx] = b
		a.order = append(a.order, idx)
	}
	if fragment.ID != "" {
		b.id = fragment.ID
	}
	if fragment.Type != "" {
		b.kind = fragment.Type
	}
	if fragment.Function.Name != "" {
		b.name = fragment.Function.Name
	}
	b.args += fragment.Function.Arguments
}

// Finalize returns the accumulated tool calls in ascending index order. An
// accumulator with no fragments returns nil.
func (a *ToolCallAccumulator) Finalize() []message.ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	sorted := append([]int(nil), a.order...)
	sort.Ints(sorted)

	out := make([]message.ToolCall, 0, len(sorted))
	for _, idx := range sorted {
		b := a.byIndex[idx]
		kind := b.kind
		if kind == "" {
			kind = "function"
		}
		out = append(out, message.ToolCall{
			ID:   b.id,
			Type: kind,
			Function: message.FunctionCall{
				Name:      b.name,
				Arguments: b.args,
			},
		})
	}
	return out
}
