// Package storetest exercises any store.Store implementation against one
// shared contract, so MemStore and sqlitestore.Store are held to the exact
// same persistence semantics.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/pkg/message"
	"github.com/lucerna-ai/lucerna/pkg/store"
)

// RunContract runs the full persistence contract against s. A single
// instance is reused for the whole contract since each test case grabs its
// own session id.
func RunContract(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing session has no system prompt", func(t *testing.T) {
		_, has, err := s.GetSystemPrompt(ctx, "missing-session")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("set then get system prompt", func(t *testing.T) {
		require.NoError(t, s.SetSystemPrompt(ctx, "sess-a", "be terse"))
		prompt, has, err := s.GetSystemPrompt(ctx, "sess-a")
		require.NoError(t, err)
		assert.True(t, has)
		assert.Equal(t, "be terse", prompt)
	})

	t.Run("append preserves order and tool calls", func(t *testing.T) {
		sessionID := "sess-b"
		require.NoError(t, s.AppendMessage(ctx, sessionID, message.User("one")))
		require.NoError(t, s.AppendMessage(ctx, sessionID, message.Assistant("two", message.ToolCall{
			ID:   "call-1",
			Type: "function",
			Function: message.FunctionCall{
				Name:      "lookup",
				Arguments: `{"q":"x"}`,
			},
		})))
		require.NoError(t, s.AppendMessage(ctx, sessionID, message.ToolResult("call-1", "lookup", "result")))

		got, err := s.GetMessages(ctx, sessionID, -1)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "one", got[0].Content.Text())
		assert.Equal(t, "two", got[1].Content.Text())
		require.Len(t, got[1].ToolCalls, 1)
		assert.Equal(t, "lookup", got[1].ToolCalls[0].Function.Name)
		assert.Equal(t, "call-1", got[2].ToolCallID)
	})

	t.Run("get messages respects limit as a suffix window", func(t *testing.T) {
		sessionID := "sess-c"
		for _, text := range []string{"a", "b", "c", "d"} {
			require.NoError(t, s.AppendMessage(ctx, sessionID, message.User(text)))
		}

		last2, err := s.GetMessages(ctx, sessionID, 2)
		require.NoError(t, err)
		require.Len(t, last2, 2)
		assert.Equal(t, "c", last2[0].Content.Text())
		assert.Equal(t, "d", last2[1].Content.Text())

		all, err := s.GetMessages(ctx, sessionID, 100)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("save full context overwrites prior state", func(t *testing.T) {
		sessionID := "sess-d"
		require.NoError(t, s.AppendMessage(ctx, sessionID, message.User("stale")))
		require.NoError(t, s.SaveFullContext(ctx, sessionID, "new prompt", true, []message.Message{
			message.User("fresh one"),
			message.Assistant("fresh two"),
		}))

		prompt, has, err := s.GetSystemPrompt(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, has)
		assert.Equal(t, "new prompt", prompt)

		msgs, err := s.GetMessages(ctx, sessionID, -1)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "fresh one", msgs[0].Content.Text())
	})

	t.Run("clear messages keeps the session but drops history", func(t *testing.T) {
		sessionID := "sess-e"
		require.NoError(t, s.SetSystemPrompt(ctx, sessionID, "keep me"))
		require.NoError(t, s.AppendMessage(ctx, sessionID, message.User("x")))

		require.NoError(t, s.ClearMessages(ctx, sessionID))

		msgs, err := s.GetMessages(ctx, sessionID, -1)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		prompt, has, err := s.GetSystemPrompt(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, has)
		assert.Equal(t, "keep me", prompt)
	})

	t.Run("delete session removes everything", func(t *testing.T) {
		sessionID := "sess-f"
		require.NoError(t, s.SetSystemPrompt(ctx, sessionID, "gone soon"))
		require.NoError(t, s.AppendMessage(ctx, sessionID, message.User("x")))

		require.NoError(t, s.DeleteSession(ctx, sessionID))

		_, has, err := s.GetSystemPrompt(ctx, sessionID)
		require.NoError(t, err)
		assert.False(t, has)

		msgs, err := s.GetMessages(ctx, sessionID, -1)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}
