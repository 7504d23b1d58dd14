package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Store defines persistence operations for the identity module.
type Store interface {
	Exists(ctx context.Context, identity string) (bool, error)
	Get(ctx context.Context, identity string) (*User, error)
	Insert(ctx context.Context, user *User) error
}

// Service manages platform accounts.
type Service struct {
	store Store
}

// NewService constructs the service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Exists reports whether the identity refers to an active account.
func (s *Service) Exists(ctx context.Context, identity string) (bool, error) {
	return s.store.Exists(ctx, identity)
}

// Provision creates an account with a bcrypt password hash. Used by the
// bootstrap CLI; self-service signup lives outside the permission core.
func (s *Service) Provision(ctx context.Context, id, email, name, password string) (*User, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	if id == "" || email == "" {
		return nil, errors.New("identity: id and email required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.store.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var _ Store = (*Repository)(nil)
