package storage

import (
	"context"
	"errors"
	"time"

	"github.com/reelgate/reelgate/pkg/auth"
)

// ErrDuplicateUser is returned by CreateUser when the email is already
// taken. The registration flow checks first, but the unique constraint is
// the backstop for the unavoidable check-then-create race.
var ErrDuplicateUser = errors.New("user already exists")

// CreateUserParams are the fields accepted when creating a user record.
// Exactly one of PasswordHash or ExternalID is normally set.
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	ExternalID   string
}

// LoginState is a persisted OAuth round-trip state value. Single use;
// expired rows are pruned by the janitor.
type LoginState struct {
	State      string
	Provider   string
	RememberMe bool
	APIKey     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// CredentialStore is the narrow contract the auth core consumes. It
// subsumes auth.UserSource and auth.KeySource.
type CredentialStore interface {
	// GetUserByEmail returns nil, nil when no user matches.
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)

	// GetUserByExternalID returns nil, nil when no user is linked to the
	// identity provider subject.
	GetUserByExternalID(ctx context.Context, externalID string) (*auth.User, error)

	// CreateUser inserts a new record and returns its generated ID.
	// Returns ErrDuplicateUser on an email collision.
	CreateUser(ctx context.Context, params CreateUserParams) (string, error)

	// LinkExternalIdentity attaches an identity provider subject to an
	// existing user.
	LinkExternalIdentity(ctx context.Context, userID, externalID string) error

	// TouchLastLogin records a successful login time.
	TouchLastLogin(ctx context.Context, userID string) error

	// GetAPIKeyByToken returns nil, nil when no key matches.
	GetAPIKeyByToken(ctx context.Context, token string) (*auth.APIKey, error)

	// SaveLoginState persists an OAuth state value for the redirect round
	// trip.
	SaveLoginState(ctx context.Context, state LoginState) error

	// ConsumeLoginState retrieves and deletes a state value. Returns
	// nil, nil when the state is unknown or already used.
	ConsumeLoginState(ctx context.Context, state string) (*LoginState, error)

	// PruneExpiredLoginStates deletes states that expired before now and
	// returns the number removed.
	PruneExpiredLoginStates(ctx context.Context, now time.Time) (int64, error)
}

// Config holds storage configuration.
type Config struct {
	// PostgresURL is the primary connection string.
	PostgresURL string

	// RedisURL enables the API-key cache when non-empty.
	RedisURL string

	// APIKeyCacheTTL bounds cache staleness after key revocation. Must not
	// exceed the token validity window.
	APIKeyCacheTTL time.Duration

	// APIKeyCacheSize bounds the in-process fallback cache.
	APIKeyCacheSize int
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		APIKeyCacheTTL:  5 * time.Minute,
		APIKeyCacheSize: 1024,
	}
}
