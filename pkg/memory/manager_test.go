package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/message"
	"github.com/lucerna-ai/lucerna/pkg/store"
)

// countingStore wraps a store.Store and counts calls to the two read
// operations a hydration performs, so tests can assert singleflight
// coalescing actually prevented duplicate storage reads.
type countingStore struct {
	store.Store
	getSystemPromptCalls int64
	getMessagesCalls     int64
}

func (c *countingStore) GetSystemPrompt(ctx context.Context, sessionID string) (string, bool, error) {
	atomic.AddInt64(&c.getSystemPromptCalls, 1)
	return c.Store.GetSystemPrompt(ctx, sessionID)
}

func (c *countingStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]message.Message, error) {
	atomic.AddInt64(&c.getMessagesCalls, 1)
	return c.Store.GetMessages(ctx, sessionID, limit)
}

func newManager(t *testing.T, cacheSize int) (*Manager, store.Store) {
	t.Helper()
	backend := store.NewMemStore()
	m, err := NewManager(backend, cacheSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, backend
}

func TestManager_CreateSwitchAppendHistory(t *testing.T) {
	m, _ := newManager(t, 8)
	ctx := context.Background()

	prompt := "be concise"
	require.NoError(t, m.Create(ctx, "s1", &prompt))
	require.NoError(t, m.SwitchTo(ctx, "s1"))

	id, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "s1", id)

	require.NoError(t, m.Append(ctx, message.User("hello")))
	require.NoError(t, m.Append(ctx, message.Assistant("hi there")))

	history, err := m.CurrentHistory(ctx, -1, nil, true)
	require.NoError(t, err)
	require.Len(t, history, 3) // system + 2 turns
	assert.Equal(t, message.RoleSystem, history[0].Role)
	assert.Equal(t, "be concise", history[0].Content.Text())
	assert.Equal(t, "hello", history[1].Content.Text())
}

func TestManager_CurrentHistory_WindowSemantics(t *testing.T) {
	m, _ := newManager(t, 8)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "s1", nil))
	require.NoError(t, m.SwitchTo(ctx, "s1"))
	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.Append(ctx, message.User(text)))
	}

	none, err := m.CurrentHistory(ctx, 0, nil, false)
	require.NoError(t, err)
	assert.Empty(t, none)

	last2, err := m.CurrentHistory(ctx, 2, nil, false)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, "c", last2[0].Content.Text())
	assert.Equal(t, "d", last2[1].Content.Text())

	all, err := m.CurrentHistory(ctx, 100, nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestManager_TempSystemPromptOverridesSessionPrompt(t *testing.T) {
	m, _ := newManager(t, 8)
	ctx := context.Background()

	sessionPrompt := "session prompt"
	require.NoError(t, m.Create(ctx, "s1", &sessionPrompt))
	require.NoError(t, m.SwitchTo(ctx, "s1"))

	temp := "temp override"
	history, err := m.CurrentHistory(ctx, -1, &temp, true)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "temp override", history[0].Content.Text())
}

func TestManager_AppendWithoutCurrentSessionIsStateError(t *testing.T) {
	m, _ := newManager(t, 8)
	err := m.Append(context.Background(), message.User("x"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.State))
}

func TestManager_CannotDeleteActiveSession(t *testing.T) {
	m, _ := newManager(t, 8)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, "s1", nil))
	require.NoError(t, m.SwitchTo(ctx, "s1"))

	err := m.Delete(ctx, "s1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Argument))
}

func TestManager_EvictionPersistsThroughToStore(t *testing.T) {
	m, backend := newManager(t, 1) // capacity 1: creating s2 evicts s1
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "s1", nil))
	require.NoError(t, m.SwitchTo(ctx, "s1"))
	require.NoError(t, m.Append(ctx, message.User("remember me")))

	require.NoError(t, m.Create(ctx, "s2", nil)) // evicts s1 from the cache

	require.Eventually(t, func() bool {
		msgs, err := backend.GetMessages(ctx, "s1", -1)
		return err == nil && len(msgs) == 1
	}, time.Second, 5*time.Millisecond, "evicted session should be persisted asynchronously")
}

func TestManager_PreloadRehydratesEvictedSession(t *testing.T) {
	m, _ := newManager(t, 1)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "s1", nil))
	require.NoError(t, m.SwitchTo(ctx, "s1"))
	require.NoError(t, m.Append(ctx, message.User("persisted")))

	require.NoError(t, m.Create(ctx, "s2", nil)) // evicts s1

	require.Eventually(t, func() bool {
		return m.ResidentCount() <= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.SwitchTo(ctx, "s1")) // rehydrates from the store
	history, err := m.CurrentHistory(ctx, -1, nil, false)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "persisted", history[0].Content.Text())
}

func TestManager_PreloadSingleFlightsConcurrentCallers(t *testing.T) {
	counting := &countingStore{Store: store.NewMemStore()}
	m, err := NewManager(counting, 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	require.NoError(t, counting.SetSystemPrompt(ctx, "shared", "x"))

	var wg [16]chan error
	for i := range wg {
		ch := make(chan error, 1)
		wg[i] = ch
		go func() { ch <- m.Preload(ctx, "shared") }()
	}
	for _, ch := range wg {
		require.NoError(t, <-ch)
	}

	assert.EqualValues(t, 1, atomic.LoadInt64(&counting.getSystemPromptCalls), "singleflight should coalesce concurrent hydrations into one system-prompt read")
	assert.EqualValues(t, 1, atomic.LoadInt64(&counting.getMessagesCalls), "singleflight should coalesce concurrent hydrations into one messages read")
}

func TestManager_ClearCurrentPreservesSystemPrompt(t *testing.T) {
	m, _ := newManager(t, 8)
	ctx := context.Background()
	prompt := "keep me"
	require.NoError(t, m.Create(ctx, "s1", &prompt))
	require.NoError(t, m.SwitchTo(ctx, "s1"))
	require.NoError(t, m.Append(ctx, message.User("x")))

	require.NoError(t, m.ClearCurrent(ctx))

	history, err := m.CurrentHistory(ctx, -1, nil, true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, message.RoleSystem, history[0].Role)
	assert.Equal(t, "keep me", history[0].Content.Text())
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m, _ := newManager(t, 8)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
