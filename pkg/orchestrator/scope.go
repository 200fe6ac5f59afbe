package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/message"
)

// ToolExecutor maps a tool-call's argument JSON string to a result string.
// A failing executor does not abort the turn: its error becomes the
// Tool-role message content, letting the model react to it.
type ToolExecutor func(ctx context.Context, argumentsJSON string) (string, error)

// Scope is a short-lived orchestration context: registered tools, last
// observed usage, and a tool-round bound, created fresh per top-level
// conversation call.
type Scope struct {
	client *Client

	maxToolRounds int
	tools         map[string]ToolExecutor
	toolDefs      []message.ToolDefinition

	lastUsage *message.UsageInfo
}

type ScopeOption func(*Scope)

func WithMaxToolRounds(n int) ScopeOption {
	return func(s *Scope) { s.maxToolRounds = n }
}

// LastUsage returns the token usage reported by the most recent provider
// call made through this scope, if any.
func (s *Scope) LastUsage() *message.UsageInfo { return s.lastUsage }

// RegisterTool adds a callable tool to this scope. parameters may be a raw
// JSON schema payload (string or []byte), an already-built
// *jsonschema.Schema (or Schema value), or any other JSON-encodable value
// such as a map, which is encoded and decoded into a schema. A raw payload
// is unmarshaled here, and any failure is reported as an errs.Argument
// error.
func (s *Scope) RegisterTool(name, description string, parameters any, executor ToolExecutor) error {
	if name == "" || !isValidToolName(name) {
		return errs.New(errs.Argument, nil, "invalid tool name %q", name)
	}
	schema, err := toSchema(parameters)
	if err != nil {
		return errs.New(errs.Argument, err, "invalid parameters schema for tool %q", name)
	}
	s.tools[name] = executor
	s.toolDefs = append(s.toolDefs, message.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
	})
	return nil
}

func isValidToolName(name string) bool {
	if len(name) > 64 {
		return false
	}
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			return false
		}
	}
	return true
}

func toSchema(parameters any) (*jsonschema.Schema, error) {
	switch v := parameters.(type) {
	case nil:
		return nil, nil
	case *jsonschema.Schema:
		return v, nil
	case jsonschema.Schema:
		return &v, nil
	case string:
		var schema jsonschema.Schema
		if err := json.Unmarshal([]byte(v), &schema); err != nil {
			return nil, err
		}
		return &schema, nil
	case []byte:
		var schema jsonschema.Schema
		if err := json.Unmarshal(v, &schema); err != nil {
			return nil, err
		}
		return &schema, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var schema jsonschema.Schema
		if err := json.Unmarshal(encoded, &schema); err != nil {
			return nil, err
		}
		return &schema, nil
	}
}
