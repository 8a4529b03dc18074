package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownUser = errors.New("unknown user")
	ErrUserExists  = errors.New("username already exists")
)

// User is one account row. NamespaceID isolates the user's long-term
// memories; it is generated once at creation and never reused, so deleting
// and re-registering the same username cannot resurrect old memories.
type User struct {
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	NamespaceID    string    `json:"namespace_id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Identity is what the orchestrator needs to address the memory service.
type Identity struct {
	NamespaceID    string
	ConversationID string
}

// Store persists account rows.
type Store interface {
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, username string) (User, error)
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]User, error)
	Close() error
}
