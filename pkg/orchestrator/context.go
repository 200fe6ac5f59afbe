package orchestrator

import (
	"context"
	"strings"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/memory"
	"github.com/lucerna-ai/lucerna/pkg/message"
)

// ContextOptions governs how a turn's message list is assembled from
// memory, an optional prompt template, and the user's input.
type ContextOptions struct {
	Strategy       message.MemoryStrategy
	Window         int
	TempSystem     *string
	PromptTemplate string
	HistoryFormat  func([]message.Message) string
}

const historyPlaceholder = "{{history}}"
const inputPlaceholder = "{{it}}"

// prepareContext builds the outgoing message list for a text turn and, if
// the strategy permits writing, appends the raw user input to memory.
// Temp system prompt always wins over the session's own prompt, via the one
// shared EffectiveSystemPrompt helper used by both branches below so they
// cannot drift from each other.
func prepareContext(ctx context.Context, mem *memory.Manager, userInput string, opts ContextOptions) ([]message.Message, error) {
	canRead := opts.Strategy.CanRead()
	canWrite := opts.Strategy.CanWrite()

	template := strings.TrimSpace(opts.PromptTemplate)
	wantsHistory := strings.Contains(opts.PromptTemplate, historyPlaceholder)
	if wantsHistory && !canRead {
		return nil, errs.New(errs.Argument, nil, "prompt template references {{history}} but the memory strategy disables reads")
	}

	var out []message.Message

	if template != "" {
		rendered := strings.ReplaceAll(opts.PromptTemplate, inputPlaceholder, userInput)
		if wantsHistory {
			historyText, err := renderHistoryText(ctx, mem, opts)
			if err != nil {
				return nil, err
			}
			rendered = strings.ReplaceAll(rendered, historyPlaceholder, historyText)
		}
		prompt, ok, err := currentEffectiveSystemPrompt(ctx, mem, opts.TempSystem)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, message.System(prompt))
		}
		out = append(out, message.User(rendered))
	} else if canRead {
		history, err := mem.CurrentHistory(ctx, opts.Window, opts.TempSystem, true)
		if err != nil {
			return nil, err
		}
		out = append(out, history...)
		out = append(out, message.User(userInput))
	} else {
		prompt, ok, err := currentEffectiveSystemPrompt(ctx, mem, opts.TempSystem)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, message.System(prompt))
		}
		out = append(out, message.User(userInput))
	}

	if canWrite {
		if err := mem.Append(ctx, message.User(userInput)); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func currentEffectiveSystemPrompt(ctx context.Context, mem *memory.Manager, tempSystem *string) (string, bool, error) {
	// current_history(0, ...) is the zero-cost way to obtain only the
	// synthesized system message (or none) without pulling any history.
	msgs, err := mem.CurrentHistory(ctx, 0, tempSystem, true)
	if err != nil {
		return "", false, err
	}
	if len(msgs) == 0 {
		if tempSystem != nil {
			return *tempSystem, true, nil
		}
		return "", false, nil
	}
	return msgs[0].Content.Text(), true, nil
}

func renderHistoryText(ctx context.Context, mem *memory.Manager, opts ContextOptions) (string, error) {
	history, err := mem.CurrentHistory(ctx, opts.Window, nil, false)
	if err != nil {
		return "", err
	}
	if opts.HistoryFormat != nil {
		return opts.HistoryFormat(history), nil
	}
	return defaultHistoryFormat(history), nil
}

func defaultHistoryFormat(history []message.Message) string {
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content.FlattenedText())
	}
	return b.String()
}
