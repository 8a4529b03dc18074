package history

import (
	"context"
	"time"
)

// Turn is one immutable role-tagged message in a user's transcript.
type Turn struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store persists and retrieves the per-user rolling transcript.
// Turns are append-only: a written turn is never edited, only wiped
// wholesale by Clear.
type Store interface {
	Append(ctx context.Context, username, role, content string) error
	// ReadWindow returns up to limit most recent turns, oldest first.
	// An unknown user yields an empty slice, not an error.
	ReadWindow(ctx context.Context, username string, limit int) ([]Turn, error)
	// Clear removes every turn for the user. Idempotent.
	Clear(ctx context.Context, username string) error
	Close() error
}
