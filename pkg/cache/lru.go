// Package cache provides the bounded, access-ordered session cache the
// memory manager gates with its own mutex.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

// SessionState is the in-memory representation of one session's history.
type SessionState struct {
	SystemPrompt    string
	HasSystemPrompt bool
	Messages        []message.Message
}

func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	return &SessionState{
		SystemPrompt:    s.SystemPrompt,
		HasSystemPrompt: s.HasSystemPrompt,
		Messages:        append([]message.Message(nil), s.Messages...),
	}
}

// EvictFunc is invoked with the evicted session id and its final state. The
// memory manager uses this hook to dispatch a background SaveFullContext.
type EvictFunc func(sessionID string, state *SessionState)

// Cache is a bounded access-ordered map from session id to SessionState.
// It is NOT internally synchronized beyond what the underlying library
// guarantees for a single call — multi-step sequences (miss, hydrate,
// insert) must be made atomic by a caller-held mutex, which is why the
// memory manager layers its own lock on top of this type.
type Cache struct {
	lru *lru.Cache[string, *SessionState]
}

func New(size int, onEvict EvictFunc) (*Cache, error) {
	underlying, err := lru.NewWithEvict[string, *SessionState](size, func(key string, value *SessionState) {
		if onEvict != nil {
			onEvict(key, value)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Cache{lru: underlying}, nil
}

func (c *Cache) Get(sessionID string) (*SessionState, bool) {
	return c.lru.Get(sessionID)
}

func (c *Cache) Put(sessionID string, state *SessionState) {
	c.lru.Add(sessionID, state)
}

func (c *Cache) Remove(sessionID string) {
	c.lru.Remove(sessionID)
}

func (c *Cache) Contains(sessionID string) bool {
	return c.lru.Contains(sessionID)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
