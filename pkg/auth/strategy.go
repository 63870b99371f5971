package auth

import (
	"context"
	"errors"
	"fmt"
)

// Credentials is the input to a password authentication attempt.
type Credentials struct {
	Email    string
	Password string
}

// UserSource is the narrow store contract the password strategy depends on.
type UserSource interface {
	// GetUserByEmail returns nil, nil when no user matches.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Strategy authenticates request credentials into a Principal. Exactly one
// strategy handles a given login request; strategies never issue tokens.
type Strategy interface {
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)
}

// errBadCredentials is the shared internal cause for every password-check
// failure. Absent user and wrong password are indistinguishable to callers.
var errBadCredentials = errors.New("unknown user or password mismatch")

// PasswordStrategy validates an email/password pair against the stored
// bcrypt hash.
type PasswordStrategy struct {
	users UserSource
}

// NewPasswordStrategy creates a password strategy backed by the given store.
func NewPasswordStrategy(users UserSource) *PasswordStrategy {
	return &PasswordStrategy{users: users}
}

// Authenticate looks up the user by email and verifies the password.
func (s *PasswordStrategy) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, ErrUnauthenticated(errBadCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, ErrInternal(fmt.Errorf("user lookup failed: %w", err))
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrUnauthenticated(errBadCredentials)
	}

	if !VerifyPassword(user.PasswordHash, creds.Password) {
		return nil, ErrUnauthenticated(errBadCredentials)
	}

	return PrincipalFromUser(user), nil
}
