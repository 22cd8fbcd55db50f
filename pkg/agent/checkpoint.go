package agent

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	go_openai "github.com/sashabaranov/go-openai"
)

// CheckpointStore persists conversation history across turns of a session.
// Lock serialises turns of the same session; the returned func releases it.
type CheckpointStore interface {
	History(sessionID string) []go_openai.ChatCompletionMessage
	AppendHistory(sessionID string, msgs ...go_openai.ChatCompletionMessage)
	Lock(sessionID string) (unlock func())
}

// MemoryCheckpointStore keeps session history in an in-process TTL cache.
// Sessions idle past the TTL are evicted wholesale; within a live session
// the history is append-only.
type MemoryCheckpointStore struct {
	cache *cache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryCheckpointStore builds a store whose sessions expire after ttl of
// inactivity.
func NewMemoryCheckpointStore(ttl time.Duration) *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		cache: cache.New(ttl, 10*time.Minute),
		locks: map[string]*sync.Mutex{},
	}
}

// Lock acquires the per-session mutex, creating it on first use. Session
// mutexes are never removed; the count is bounded by distinct session IDs
// seen during the process lifetime.
func (s *MemoryCheckpointStore) Lock(sessionID string) func() {
	s.mu.Lock()
	m, ok := s.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[sessionID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// History returns a copy of the session's conversation so far.
func (s *MemoryCheckpointStore) History(sessionID string) []go_openai.ChatCompletionMessage {
	v, ok := s.cache.Get(sessionID)
	if !ok {
		return nil
	}
	stored := v.([]go_openai.ChatCompletionMessage)
	out := make([]go_openai.ChatCompletionMessage, len(stored))
	copy(out, stored)
	return out
}

// AppendHistory extends the session's conversation and refreshes its TTL.
func (s *MemoryCheckpointStore) AppendHistory(sessionID string, msgs ...go_openai.ChatCompletionMessage) {
	if len(msgs) == 0 {
		return
	}
	var stored []go_openai.ChatCompletionMessage
	if v, ok := s.cache.Get(sessionID); ok {
		stored = v.([]go_openai.ChatCompletionMessage)
	}
	stored = append(stored, msgs...)
	s.cache.Set(sessionID, stored, cache.DefaultExpiration)
}
