package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one role-tagged prompt entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt is the fully assembled request for one generation call. It is
// built fresh per request and never shared across concurrent turns.
type Prompt struct {
	System   string
	Messages []Message
}

// Chars returns the total character count across all prompt text, the unit
// the size budget is enforced in.
func (p Prompt) Chars() int {
	n := len(p.System)
	for _, m := range p.Messages {
		n += len(m.Content)
	}
	return n
}

// Result carries the final text after a streaming call. On a mid-stream
// failure Text still contains every delta produced before the error.
type Result struct {
	Text string
}

// DeltaHandler receives streaming text fragments as soon as they are
// produced.
type DeltaHandler func(delta string) error

// Adapter bridges the orchestrator with a text-generation backend. A
// stream runs Idle -> Streaming -> {Completed | Failed}; each call is a
// fresh stream, there is no resume.
type Adapter interface {
	StreamChat(ctx context.Context, prompt Prompt, onDelta DeltaHandler) (Result, error)
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Config controls adapter construction.
type Config struct {
	Mode   string
	APIKey string
	Model  string
}

func NewAdapter(ctx context.Context, cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewGeminiAdapter(ctx, cfg.APIKey, cfg.Model)
		}
		return NewMockAdapter(), nil
	case "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("gemini API key is required for gemini mode")
		}
		return NewGeminiAdapter(ctx, cfg.APIKey, cfg.Model)
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported llm adapter mode %q", cfg.Mode)
	}
}
