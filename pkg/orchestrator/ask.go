package orchestrator

import (
	"context"

	"github.com/lucerna-ai/lucerna/pkg/logging"
	"github.com/lucerna-ai/lucerna/pkg/message"
	"github.com/lucerna-ai/lucerna/pkg/stream"
)

const component = "orchestrator"

// AskOptions bundles the per-call context-preparation settings and the
// provider-level generation options for a single Ask/AskStream call.
type AskOptions struct {
	ContextOptions
	Generation message.GenerationOptions
}

// Ask runs a non-streaming Re-Act turn: a model call, then tool dispatch and
// another model call for as long as the model keeps requesting tools, up to
// the scope's max-tool-rounds bound.
func (s *Scope) Ask(ctx context.Context, userInput string, opts AskOptions) (string, error) {
	messages, err := prepareContext(ctx, s.client.Memory, userInput, opts.ContextOptions)
	if err != nil {
		return "", err
	}

	genOpts := opts.Generation.Clone()
	if len(s.toolDefs) > 0 {
		genOpts.Tools = genOpts.MergeTools(s.toolDefs)
	}

	canWrite := opts.Strategy.CanWrite()

	for round := 0; round < s.maxToolRounds; round++ {
		resp, err := s.client.Provider.Chat(ctx, messages, genOpts)
		if err != nil {
			return "", err
		}
		s.lastUsage = resp.Usage

		assistant := message.Assistant(resp.Content, resp.ToolCalls...)
		messages = append(messages, assistant)
		if canWrite {
			if err := s.client.Memory.Append(ctx, assistant); err != nil {
				return "", err
			}
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages, err = s.dispatchToolCalls(ctx, messages, resp.ToolCalls, canWrite)
		if err != nil {
			return "", err
		}
	}

	logging.WarnCF(component, "max tool rounds exceeded", map[string]interface{}{"max_rounds": s.maxToolRounds})
	return lastAssistantText(messages), nil
}

// AskStream runs the same Re-Act turn but pipes content deltas through the
// adaptive batching aggregator to sink as they arrive.
func (s *Scope) AskStream(ctx context.Context, userInput string, opts AskOptions, sink stream.Sink) (string, error) {
	messages, err := prepareContext(ctx, s.client.Memory, userInput, opts.ContextOptions)
	if err != nil {
		return "", err
	}

	genOpts := opts.Generation.Clone()
	if len(s.toolDefs) > 0 {
		genOpts.Tools = genOpts.MergeTools(s.toolDefs)
	}

	canWrite := opts.Strategy.CanWrite()
	var finalText string

	for round := 0; round < s.maxToolRounds; round++ {
		text, toolCalls, usage, err := s.streamOneTurn(ctx, messages, genOpts, sink)
		if err != nil {
			return "", err
		}
		s.lastUsage = usage
		finalText = text

		assistant := message.Assistant(text, toolCalls...)
		messages = append(messages, assistant)
		if canWrite {
			if err := s.client.Memory.Append(ctx, assistant); err != nil {
				return "", err
			}
		}

		if len(toolCalls) == 0 {
			return text, nil
		}
		messages, err = s.dispatchToolCalls(ctx, messages, toolCalls, canWrite)
		if err != nil {
			return "", err
		}
	}

	logging.WarnCF(component, "max tool rounds exceeded", map[string]interface{}{"max_rounds": s.maxToolRounds})
	return finalText, nil
}

func (s *Scope) streamOneTurn(ctx context.Context, messages []message.Message, opts message.GenerationOptions, sink stream.Sink) (string, []message.ToolCall, *message.UsageInfo, error) {
	var fullText string
	batcher := stream.NewBatcher(func(chunk string) {
		fullText += chunk
		sink(chunk)
	})
	accumulator := stream.NewToolCallAccumulator()
	var usage *message.UsageInfo

	deltas, errCh := s.client.Provider.Stream(ctx, messages, opts)
	for delta := range deltas {
		if delta.Content != "" {
			batcher.Append(delta.Content)
		}
		for _, tc := range delta.ToolCalls {
			accumulator.Add(tc)
		}
		if delta.Usage != nil {
			usage = delta.Usage
		}
	}
	batcher.Flush()

	if err := <-errCh; err != nil {
		return fullText, nil, usage, err
	}
	return fullText, accumulator.Finalize(), usage, nil
}

// dispatchToolCalls executes each finalized tool call in order, appending a
// Tool-role result message for each -- to the outgoing list always, and to
// memory when the strategy permits writes. An unregistered tool or a
// failing executor produces an error-text result rather than aborting the
// turn; a memory write failure propagates like any other write-through
// Append call.
func (s *Scope) dispatchToolCalls(ctx context.Context, messages []message.Message, calls []message.ToolCall, write bool) ([]message.Message, error) {
	for _, call := range calls {
		result := s.runTool(ctx, call)
		toolMsg := message.ToolResult(call.ID, call.Function.Name, result)
		messages = append(messages, toolMsg)
		if write {
			if err := s.client.Memory.Append(ctx, toolMsg); err != nil {
				return nil, err
			}
		}
	}
	return messages, nil
}

func (s *Scope) runTool(ctx context.Context, call message.ToolCall) string {
	executor, ok := s.tools[call.Function.Name]
	if !ok {
		return "Error executing tool '" + call.Function.Name + "': not registered"
	}
	result, err := executor(ctx, call.Function.Arguments)
	if err != nil {
		return "Error executing tool '" + call.Function.Name + "': " + err.Error()
	}
	return result
}

func lastAssistantText(messages []message.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == message.RoleAssistant {
			return messages[i].Content.Text()
		}
	}
	return ""
}
