package message

import "github.com/google/jsonschema-go/jsonschema"

// ToolDefinition describes a callable function a provider may invoke. Name
// must be an identifier of letters, digits and underscores, at most 64
// characters; Parameters is a real JSON-schema value rather than a bare map,
// so a registered definition can be handed to a provider verbatim.
type ToolDefinition struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Parameters  *jsonschema.Schema  `json:"parameters,omitempty"`
}

// MemoryStrategy controls whether an orchestration turn reads prior history,
// writes the turn back to memory, both, or neither.
type MemoryStrategy int

const (
	MemoryReadWrite MemoryStrategy = iota
	MemoryReadOnly
	MemoryWriteOnly
	MemoryStateless
)

func (s MemoryStrategy) CanRead() bool  { return s == MemoryReadWrite || s == MemoryReadOnly }
func (s MemoryStrategy) CanWrite() bool { return s == MemoryReadWrite || s == MemoryWriteOnly }

// GenerationOptions carries per-call provider tuning plus the tool surface
// offered to the model for this call.
type GenerationOptions struct {
	Model            string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	StopSequences    []string
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Tools            []ToolDefinition
	ToolChoice       string
}

// Clone returns a shallow copy suitable for per-call mutation (e.g. the
// structured-output retry loop forcing a low temperature) without mutating
// the caller's original options.
func (o GenerationOptions) Clone() GenerationOptions {
	clone := o
	clone.StopSequences = append([]string(nil), o.StopSequences...)
	clone.Tools = append([]ToolDefinition(nil), o.Tools...)
	return clone
}

// MergeTools unions the receiver's tools with extra, deduplicating by
// function name; entries already present in the receiver win.
func (o GenerationOptions) MergeTools(extra []ToolDefinition) []ToolDefinition {
	seen := make(map[string]bool, len(o.Tools))
	merged := append([]ToolDefinition(nil), o.Tools...)
	for _, t := range o.Tools {
		seen[t.Name] = true
	}
	for _, t := range extra {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		merged = append(merged, t)
	}
	return merged
}
