package history

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process transcript store for local/dev use.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	turns  map[string][]Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{turns: make(map[string][]Turn)}
}

func (s *InMemoryStore) Append(_ context.Context, username, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.turns[username] = append(s.turns[username], Turn{
		ID:        s.nextID,
		Username:  username,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *InMemoryStore) ReadWindow(_ context.Context, username string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[username]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Turn, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Clear(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, username)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
