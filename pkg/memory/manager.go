// Package memory implements the session lifecycle: a bounded LRU cache of
// resident SessionState, single-flight hydration from a store.Store, and
// asynchronous, per-session-ordered write-through persistence.
package memory

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lucerna-ai/lucerna/pkg/cache"
	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/logging"
	"github.com/lucerna-ai/lucerna/pkg/message"
	"github.com/lucerna-ai/lucerna/pkg/store"
)

const component = "memory"

// Manager owns the session cache and arbitrates every cache mutation behind
// a single mutex; I/O never happens inside that critical section.
type Manager struct {
	store store.Store

	mu          sync.Mutex
	cache       *cache.Cache
	currentID   string
	hasCurrent  bool

	hydrateGroup singleflight.Group

	jobsMu sync.Mutex
	jobs   map[string]chan persistJob
	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
	closeOnce sync.Once
}

type persistJob struct {
	run func(ctx context.Context) error
}

func NewManager(backend store.Store, cacheSize int) (*Manager, error) {
	m := &Manager{store: backend, jobs: make(map[string]chan persistJob)}
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())

	c, err := cache.New(cacheSize, m.onEvict)
	if err != nil {
		return nil, errs.New(errs.Argument, err, "construct session cache")
	}
	m.cache = c
	return m, nil
}

// Close cancels the background persistence scope, waits for in-flight jobs
// to drain, and closes the underlying store. Idempotent.
func (m *Manager) Close() error {
	var closeErr error
	m.closeOnce.Do(func() {
		m.bgCancel()
		m.wg.Wait()
		closeErr = m.store.Close()
	})
	return closeErr
}

// onEvict runs synchronously inside a cache Put (via the LRU library's
// eviction callback), while the manager holds m.mu; it must not block on
// I/O, so it only enqueues a background job.
func (m *Manager) onEvict(sessionID string, state *cache.SessionState) {
	if state == nil {
		return
	}
	snapshot := state.Clone()
	m.enqueue(sessionID, func(ctx context.Context) error {
		return m.store.SaveFullContext(ctx, sessionID, snapshot.SystemPrompt, snapshot.HasSystemPrompt, snapshot.Messages)
	})
}

// enqueue dispatches run onto the per-session ordered worker for sessionID,
// starting that worker lazily. Workers run until Close() cancels the
// background context, then drain what is already queued and exit;
// per-session ordering is maintained because each
// session has exactly one worker goroutine consuming a single channel.
func (m *Manager) enqueue(sessionID string, run func(ctx context.Context) error) {
	m.jobsMu.Lock()
	ch, ok := m.jobs[sessionID]
	if !ok {
		ch = make(chan persistJob, 64)
		m.jobs[sessionID] = ch
		m.wg.Add(1)
		go m.worker(sessionID, ch)
	}
	m.jobsMu.Unlock()

	select {
	case ch <- persistJob{run: run}:
	case <-m.bgCtx.Done():
	}
}

func (m *Manager) worker(sessionID string, ch chan persistJob) {
	defer m.wg.Done()
	run := func(job persistJob) {
		if err := job.run(m.bgCtx); err != nil {
			logging.WarnCF(component, "background persistence failed", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
	for {
		select {
		case job := <-ch:
			run(job)
		case <-m.bgCtx.Done():
			// Drain whatever is already queued before exiting so a Close
			// racing with an eviction still flushes it.
			for {
				select {
				case job := <-ch:
					run(job)
				default:
					return
				}
			}
		}
	}
}

// hydrate loads a session from storage via singleflight, first waiting for
// any persistence jobs already queued for that session (such as the flush of
// its own eviction) so the read observes them. Callers must NOT hold m.mu
// while this runs; it does not touch the cache -- Preload inserts the
// result, re-checking for a concurrent insert.
func (m *Manager) hydrate(ctx context.Context, sessionID string) (*cache.SessionState, error) {
	result, err, _ := m.hydrateGroup.Do(sessionID, func() (interface{}, error) {
		m.jobsMu.Lock()
		_, hasWorker := m.jobs[sessionID]
		m.jobsMu.Unlock()
		if hasWorker {
			drained := make(chan struct{})
			m.enqueue(sessionID, func(context.Context) error { close(drained); return nil })
			select {
			case <-drained:
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-m.bgCtx.Done():
			}
		}
		prompt, hasPrompt, err := m.store.GetSystemPrompt(ctx, sessionID)
		if err != nil {
			return nil, errs.New(errs.IO, err, "load system prompt for %s", sessionID)
		}
		msgs, err := m.store.GetMessages(ctx, sessionID, -1)
		if err != nil {
			return nil, errs.New(errs.IO, err, "load messages for %s", sessionID)
		}
		return &cache.SessionState{SystemPrompt: prompt, HasSystemPrompt: hasPrompt, Messages: msgs}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*cache.SessionState), nil
}

// Preload ensures sessionID is resident in the cache, joining any in-flight
// hydration for the same id rather than issuing a second storage read.
func (m *Manager) Preload(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.cache.Contains(sessionID) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	state, err := m.hydrate(ctx, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cache.Contains(sessionID) {
		m.cache.Put(sessionID, state)
	}
	return nil
}

// Create ensures a resident SessionState exists for sessionID. If a system
// prompt is supplied, it overwrites any existing prompt and is persisted.
func (m *Manager) Create(ctx context.Context, sessionID string, systemPrompt *string) error {
	if err := m.Preload(ctx, sessionID); err != nil {
		return err
	}
	if systemPrompt == nil {
		return nil
	}
	m.mu.Lock()
	state, _ := m.cache.Get(sessionID)
	if state == nil {
		state = &cache.SessionState{}
	}
	state.SystemPrompt = *systemPrompt
	state.HasSystemPrompt = true
	m.cache.Put(sessionID, state)
	m.mu.Unlock()

	m.enqueue(sessionID, func(ctx context.Context) error {
		return m.store.SetSystemPrompt(ctx, sessionID, *systemPrompt)
	})
	return nil
}

// SwitchTo makes sessionID the current session, preloading it if necessary.
func (m *Manager) SwitchTo(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	cached := m.cache.Contains(sessionID)
	m.mu.Unlock()

	if !cached {
		if err := m.Preload(ctx, sessionID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.currentID = sessionID
	m.hasCurrent = true
	m.mu.Unlock()
	return nil
}

// Current returns the current session id, if one has been set.
func (m *Manager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID, m.hasCurrent
}

// Delete removes sessionID from the cache and schedules its storage
// deletion. It is an argument error to delete the active session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.hasCurrent && m.currentID == sessionID {
		m.mu.Unlock()
		return errs.New(errs.Argument, nil, "cannot delete the active session %s", sessionID)
	}
	m.cache.Remove(sessionID)
	m.mu.Unlock()

	m.enqueue(sessionID, func(ctx context.Context) error {
		return m.store.DeleteSession(ctx, sessionID)
	})
	return nil
}

// UpdateSystemPrompt sets the system prompt for sessionID. A nil prompt
// leaves both the cached and the persisted prompt untouched (it only makes
// sure the session is resident).
func (m *Manager) UpdateSystemPrompt(ctx context.Context, sessionID string, prompt *string) error {
	if err := m.Preload(ctx, sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	state, _ := m.cache.Get(sessionID)
	if state == nil {
		state = &cache.SessionState{}
	}
	if prompt != nil {
		state.SystemPrompt = *prompt
		state.HasSystemPrompt = true
	}
	m.cache.Put(sessionID, state)
	m.mu.Unlock()

	if prompt == nil {
		return nil
	}
	m.enqueue(sessionID, func(ctx context.Context) error {
		return m.store.SetSystemPrompt(ctx, sessionID, *prompt)
	})
	return nil
}

// Append write-throughs a message to the current session's cache entry and
// schedules an async AppendMessage.
func (m *Manager) Append(ctx context.Context, msg message.Message) error {
	m.mu.Lock()
	if !m.hasCurrent {
		m.mu.Unlock()
		return errs.New(errs.State, nil, "no current session set")
	}
	sessionID := m.currentID
	m.mu.Unlock()

	if err := m.Preload(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	state, _ := m.cache.Get(sessionID)
	if state == nil {
		state = &cache.SessionState{}
	}
	state.Messages = append(state.Messages, msg)
	m.cache.Put(sessionID, state)
	m.mu.Unlock()

	m.enqueue(sessionID, func(ctx context.Context) error {
		return m.store.AppendMessage(ctx, sessionID, msg)
	})
	return nil
}

// CurrentHistory returns messages from the current session, optionally
// truncated to the last `window` entries (-1 = all, 0 = none), optionally
// prepended with a synthesized System message built from the effective
// system prompt (tempSystem overrides the session's own prompt).
func (m *Manager) CurrentHistory(ctx context.Context, window int, tempSystem *string, includeSystem bool) ([]message.Message, error) {
	m.mu.Lock()
	hasCurrent := m.hasCurrent
	sessionID := m.currentID
	m.mu.Unlock()
	if !hasCurrent {
		return nil, errs.New(errs.State, nil, "no current session set")
	}
	if err := m.Preload(ctx, sessionID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	state, _ := m.cache.Get(sessionID)
	if state == nil {
		state = &cache.SessionState{}
	}

	var windowed []message.Message
	switch {
	case window == 0:
		windowed = nil
	case window < 0 || window >= len(state.Messages):
		windowed = append([]message.Message(nil), state.Messages...)
	default:
		windowed = append([]message.Message(nil), state.Messages[len(state.Messages)-window:]...)
	}

	if !includeSystem {
		return windowed, nil
	}
	if prompt, ok := EffectiveSystemPrompt(tempSystem, state.SystemPrompt, state.HasSystemPrompt); ok {
		return append([]message.Message{message.System(prompt)}, windowed...), nil
	}
	return windowed, nil
}

// EffectiveSystemPrompt implements the shared "temp override beats session
// prompt" rule used by both the templated and the plain context-preparation
// paths, so the two paths cannot drift from each other.
func EffectiveSystemPrompt(tempSystem *string, sessionPrompt string, hasSessionPrompt bool) (string, bool) {
	if tempSystem != nil {
		return *tempSystem, true
	}
	if hasSessionPrompt {
		return sessionPrompt, true
	}
	return "", false
}

// ClearCurrent truncates the current session's messages (system prompt is
// preserved) and schedules an async ClearMessages.
func (m *Manager) ClearCurrent(ctx context.Context) error {
	m.mu.Lock()
	if !m.hasCurrent {
		m.mu.Unlock()
		return errs.New(errs.State, nil, "no current session set")
	}
	sessionID := m.currentID
	m.mu.Unlock()

	if err := m.Preload(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	state, _ := m.cache.Get(sessionID)
	if state != nil {
		state.Messages = nil
		m.cache.Put(sessionID, state)
	}
	m.mu.Unlock()

	m.enqueue(sessionID, func(ctx context.Context) error {
		return m.store.ClearMessages(ctx, sessionID)
	})
	return nil
}

// ResidentCount reports the cache's current entry count, mostly useful for
// tests asserting the LRU bound.
func (m *Manager) ResidentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
