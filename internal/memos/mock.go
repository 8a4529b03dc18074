package memos

import (
	"context"
	"errors"
	"sync"
)

// MockGateway provides deterministic digests for tests and keyless dev.
type MockGateway struct {
	mu      sync.Mutex
	Digest  string
	Fail    bool
	writes  [][]Message
	queries []string
}

func NewMockGateway() *MockGateway { return &MockGateway{} }

func (g *MockGateway) Search(_ context.Context, _, _, query string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, query)
	if g.Fail {
		return ""
	}
	return g.Digest
}

func (g *MockGateway) Write(_ context.Context, _, _ string, messages []Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return errors.New("memos unavailable")
	}
	copied := make([]Message, len(messages))
	copy(copied, messages)
	g.writes = append(g.writes, copied)
	return nil
}

func (g *MockGateway) Writes() [][]Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][]Message, len(g.writes))
	copy(out, g.writes)
	return out
}

func (g *MockGateway) Queries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.queries))
	copy(out, g.queries)
	return out
}
