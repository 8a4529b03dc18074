package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRegisterResolveAuthenticate(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	id, err := svc.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.HasPrefix(id.NamespaceID, "user_alice_") {
		t.Fatalf("NamespaceID = %q, want user_alice_ prefix", id.NamespaceID)
	}
	if id.ConversationID != "conv_default" {
		t.Fatalf("ConversationID = %q, want conv_default", id.ConversationID)
	}

	ok, err := svc.Authenticate(ctx, "alice", "s3cret")
	if err != nil || !ok {
		t.Fatalf("Authenticate(good) = %v, %v, want true", ok, err)
	}
	ok, err = svc.Authenticate(ctx, "alice", "wrong")
	if err != nil || ok {
		t.Fatalf("Authenticate(bad) = %v, %v, want false", ok, err)
	}
	ok, err = svc.Authenticate(ctx, "nobody", "s3cret")
	if err != nil || ok {
		t.Fatalf("Authenticate(unknown) = %v, %v, want false", ok, err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "one"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := svc.Register(ctx, "alice", "two"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("Register(duplicate) error = %v, want ErrUserExists", err)
	}
}

func TestResolveUnknownUser(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	if _, err := svc.Resolve(context.Background(), "ghost"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("Resolve(unknown) error = %v, want ErrUnknownUser", err)
	}
}

func TestNamespaceIDsNeverReused(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	first, err := svc.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := svc.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("re-Register() error = %v", err)
	}
	second, err := svc.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if first.NamespaceID == second.NamespaceID {
		t.Fatalf("namespace id reused across deletion: %q", first.NamespaceID)
	}
}

// wrappingStore decorates Get errors the way a driver-backed store might.
type wrappingStore struct {
	Store
}

func (s wrappingStore) Get(ctx context.Context, username string) (User, error) {
	user, err := s.Store.Get(ctx, username)
	if err != nil {
		return User{}, fmt.Errorf("lookup %q: %w", username, err)
	}
	return user, nil
}

func TestAuthenticateUnwrapsUnknownUser(t *testing.T) {
	svc := NewService(wrappingStore{Store: NewInMemoryStore()})

	ok, err := svc.Authenticate(context.Background(), "nobody", "pw")
	if err != nil {
		t.Fatalf("Authenticate() error = %v, want nil for unknown user", err)
	}
	if ok {
		t.Fatalf("Authenticate() = true for unknown user")
	}
}
