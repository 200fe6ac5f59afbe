package store

import (
	"context"
	"sync"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

type sessionRecord struct {
	systemPrompt    string
	hasSystemPrompt bool
	messages        []message.Message
}

// MemStore is the default in-process Store, backed by a mutex-guarded map.
// It satisfies the persistence contract for tests and for callers who do not
// need durability across process restarts.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*sessionRecord)}
}

func (s *MemStore) record(sessionID string) *sessionRecord {
	r, ok := s.sessions[sessionID]
	if !ok {
		r = &sessionRecord{}
		s.sessions[sessionID] = r
	}
	return r
}

func (s *MemStore) GetSystemPrompt(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	return r.systemPrompt, r.hasSystemPrompt, nil
}

func (s *MemStore) SetSystemPrompt(_ context.Context, sessionID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(sessionID)
	r.systemPrompt = prompt
	r.hasSystemPrompt = true
	return nil
}

func (s *MemStore) GetMessages(_ context.Context, sessionID string, limit int) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if limit < 0 || limit >= len(r.messages) {
		out := make([]message.Message, len(r.messages))
		copy(out, r.messages)
		return out, nil
	}
	start := len(r.messages) - limit
	out := make([]message.Message, limit)
	copy(out, r.messages[start:])
	return out, nil
}

func (s *MemStore) AppendMessage(_ context.Context, sessionID string, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(sessionID)
	r.messages = append(r.messages, msg)
	return nil
}

func (s *MemStore) SaveFullContext(_ context.Context, sessionID string, systemPrompt string, hasSystemPrompt bool, messages []message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(sessionID)
	r.systemPrompt = systemPrompt
	r.hasSystemPrompt = hasSystemPrompt
	r.messages = append([]message.Message(nil), messages...)
	return nil
}

func (s *MemStore) ClearMessages(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[sessionID]
	if ok {
		r.messages = nil
	}
	return nil
}

func (s *MemStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemStore) Close() error { return nil }
