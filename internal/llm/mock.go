package llm

import (
	"context"
	"strings"
)

// MockAdapter provides deterministic local replies when no backend is
// configured, and scripted streams for tests.
type MockAdapter struct {
	// Deltas, when set, are emitted in order before Err (if any) ends the
	// stream. When unset the adapter echoes the final user message.
	Deltas []string
	Err    error

	CompleteText string
	CompleteErr  error
}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) StreamChat(ctx context.Context, prompt Prompt, onDelta DeltaHandler) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	deltas := a.Deltas
	if deltas == nil && a.Err == nil {
		deltas = []string{mockReply(prompt)}
	}

	var out strings.Builder
	for _, delta := range deltas {
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Result{Text: out.String()}, err
			}
		}
	}
	if a.Err != nil {
		return Result{Text: out.String()}, a.Err
	}
	return Result{Text: out.String()}, nil
}

func (a *MockAdapter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if a.CompleteErr != nil {
		return "", a.CompleteErr
	}
	if a.CompleteText != "" {
		return a.CompleteText, nil
	}
	return mockReply(prompt), nil
}

func mockReply(prompt Prompt) string {
	last := ""
	for i := len(prompt.Messages) - 1; i >= 0; i-- {
		if prompt.Messages[i].Role == RoleUser {
			last = strings.TrimSpace(prompt.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return "I am listening."
	}
	return "I heard you: " + last
}
