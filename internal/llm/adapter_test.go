package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewAdapterModes(t *testing.T) {
	ctx := context.Background()

	a, err := NewAdapter(ctx, Config{Mode: "mock"})
	if err != nil {
		t.Fatalf("NewAdapter(mock) error = %v", err)
	}
	if _, ok := a.(*MockAdapter); !ok {
		t.Fatalf("NewAdapter(mock) = %T, want *MockAdapter", a)
	}

	// auto without a key falls back to mock.
	a, err = NewAdapter(ctx, Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewAdapter(auto) error = %v", err)
	}
	if _, ok := a.(*MockAdapter); !ok {
		t.Fatalf("NewAdapter(auto, no key) = %T, want *MockAdapter", a)
	}

	if _, err := NewAdapter(ctx, Config{Mode: "gemini"}); err == nil {
		t.Fatalf("NewAdapter(gemini, no key) expected error")
	}
	if _, err := NewAdapter(ctx, Config{Mode: "bogus"}); err == nil {
		t.Fatalf("NewAdapter(bogus) expected error")
	}
}

func TestMockAdapterScriptedStream(t *testing.T) {
	a := &MockAdapter{Deltas: []string{"Gravity ", "is a force."}}

	var deltas []string
	res, err := a.StreamChat(context.Background(), Prompt{}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	if res.Text != "Gravity is a force." {
		t.Fatalf("res.Text = %q", res.Text)
	}
	if strings.Join(deltas, "") != "Gravity is a force." {
		t.Fatalf("deltas = %v", deltas)
	}
}

func TestMockAdapterMidStreamFailureKeepsPartialText(t *testing.T) {
	failure := errors.New("quota exceeded")
	a := &MockAdapter{Deltas: []string{"Hello", " there"}, Err: failure}

	res, err := a.StreamChat(context.Background(), Prompt{}, nil)
	if !errors.Is(err, failure) {
		t.Fatalf("StreamChat() error = %v, want %v", err, failure)
	}
	if res.Text != "Hello there" {
		t.Fatalf("res.Text = %q, want partial output preserved", res.Text)
	}
}

func TestMockAdapterEchoesLastUserMessage(t *testing.T) {
	a := NewMockAdapter()
	prompt := Prompt{Messages: []Message{
		{Role: RoleUser, Content: "older"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "What is gravity?"},
	}}

	res, err := a.StreamChat(context.Background(), prompt, nil)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	if res.Text != "I heard you: What is gravity?" {
		t.Fatalf("res.Text = %q", res.Text)
	}
}

func TestPromptChars(t *testing.T) {
	p := Prompt{
		System: "abc",
		Messages: []Message{
			{Role: RoleUser, Content: "12345"},
			{Role: RoleAssistant, Content: "67"},
		},
	}
	if got := p.Chars(); got != 10 {
		t.Fatalf("Chars() = %d, want 10", got)
	}
}
