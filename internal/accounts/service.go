package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultConversationID = "conv_default"

// Service wraps a Store with registration, login, and identity resolution.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates an account with a fresh memory namespace.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.Create(ctx, User{
		Username:       username,
		PasswordHash:   string(hash),
		NamespaceID:    newNamespaceID(username),
		ConversationID: defaultConversationID,
		CreatedAt:      time.Now().UTC(),
	})
}

// Authenticate reports whether the credentials match a stored account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := s.store.Get(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return false, nil
		}
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

// Resolve maps a username to its memory namespace and conversation.
func (s *Service) Resolve(ctx context.Context, username string) (Identity, error) {
	user, err := s.store.Get(ctx, strings.TrimSpace(username))
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		NamespaceID:    user.NamespaceID,
		ConversationID: user.ConversationID,
	}, nil
}

func (s *Service) Delete(ctx context.Context, username string) error {
	return s.store.Delete(ctx, strings.TrimSpace(username))
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// newNamespaceID mixes the username with a random suffix so identifiers stay
// recognizable in the memory service while never colliding across deletions.
func newNamespaceID(username string) string {
	return "user_" + username + "_" + uuid.NewString()[:8]
}
