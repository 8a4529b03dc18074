package writeback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/elacava/principia/internal/history"
	"github.com/elacava/principia/internal/memos"
)

// flakyStore fails the first failures appends, then behaves like the
// in-memory store.
type flakyStore struct {
	*history.InMemoryStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) Append(ctx context.Context, username, role, content string) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("store unavailable")
	}
	s.mu.Unlock()
	return s.InMemoryStore.Append(ctx, username, role, content)
}

func testConfig() Config {
	return Config{
		QueueSize:  8,
		Workers:    1,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		RetryCap:   5 * time.Millisecond,
		OpTimeout:  time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestQueuePersistsExchange(t *testing.T) {
	store := history.NewInMemoryStore()
	gateway := memos.NewMockGateway()
	q := NewQueue(testConfig(), store, gateway, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	if !q.Submit(Job{
		Username:       "alice",
		NamespaceID:    "user_alice_1234",
		ConversationID: "conv_default",
		UserText:       "What is gravity?",
		AssistantText:  "Gravity is a force.",
	}) {
		t.Fatalf("Submit() = false, want true")
	}

	waitFor(t, func() bool {
		turns, _ := store.ReadWindow(context.Background(), "alice", 10)
		return len(turns) == 2
	})

	turns, err := store.ReadWindow(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("ReadWindow() error = %v", err)
	}
	if turns[0].Role != history.RoleUser || turns[0].Content != "What is gravity?" {
		t.Fatalf("turns[0] = %+v", turns[0])
	}
	if turns[1].Role != history.RoleAssistant || turns[1].Content != "Gravity is a force." {
		t.Fatalf("turns[1] = %+v", turns[1])
	}

	waitFor(t, func() bool { return len(gateway.Writes()) == 1 })
	writes := gateway.Writes()
	if len(writes[0]) != 2 || writes[0][1].Content != "Gravity is a force." {
		t.Fatalf("gateway writes = %+v", writes)
	}
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{InMemoryStore: history.NewInMemoryStore(), failures: 2}
	q := NewQueue(testConfig(), store, memos.NewMockGateway(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	q.Submit(Job{Username: "alice", UserText: "hello", AssistantText: "hi"})

	waitFor(t, func() bool {
		turns, _ := store.ReadWindow(context.Background(), "alice", 10)
		return len(turns) == 2
	})
}

func TestQueueSkipsAssistantAndMemoryWhenOutputEmpty(t *testing.T) {
	store := history.NewInMemoryStore()
	gateway := memos.NewMockGateway()
	q := NewQueue(testConfig(), store, gateway, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	q.Submit(Job{Username: "alice", UserText: "hello", AssistantText: ""})

	waitFor(t, func() bool {
		turns, _ := store.ReadWindow(context.Background(), "alice", 10)
		return len(turns) == 1
	})
	time.Sleep(20 * time.Millisecond)

	turns, _ := store.ReadWindow(context.Background(), "alice", 10)
	if len(turns) != 1 || turns[0].Role != history.RoleUser {
		t.Fatalf("turns = %+v, want only the user turn", turns)
	}
	if len(gateway.Writes()) != 0 {
		t.Fatalf("gateway writes = %d, want 0", len(gateway.Writes()))
	}
}

func TestQueueDrainsBufferedJobsOnShutdown(t *testing.T) {
	store := history.NewInMemoryStore()
	gateway := memos.NewMockGateway()
	q := NewQueue(testConfig(), store, gateway, nil, nil)

	// Accepted before the workers ever run.
	for i := 0; i < 5; i++ {
		if !q.Submit(Job{
			Username:       "alice",
			NamespaceID:    "user_alice_1234",
			ConversationID: "conv_default",
			UserText:       "question",
			AssistantText:  "answer",
		}) {
			t.Fatalf("Submit() = false, want true")
		}
	}

	// The run context is already dead; every buffered job must still land.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	turns, err := store.ReadWindow(context.Background(), "alice", 20)
	if err != nil {
		t.Fatalf("ReadWindow() error = %v", err)
	}
	if len(turns) != 10 {
		t.Fatalf("persisted turns = %d, want 10 (5 exchanges)", len(turns))
	}
	if len(gateway.Writes()) != 5 {
		t.Fatalf("gateway writes = %d, want 5", len(gateway.Writes()))
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	// No Run(): nothing drains the channel.
	q := NewQueue(cfg, history.NewInMemoryStore(), nil, nil, nil)

	if !q.Submit(Job{Username: "a", UserText: "x"}) {
		t.Fatalf("first Submit() = false, want true")
	}
	if q.Submit(Job{Username: "b", UserText: "y"}) {
		t.Fatalf("second Submit() = true, want false on saturated queue")
	}
}
