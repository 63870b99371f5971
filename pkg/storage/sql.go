package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelgate/reelgate/pkg/auth"
)

// schema is the DDL for the credential tables. Placeholders and types are
// kept portable so behavior tests can run against in-memory SQLite.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	external_id TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	last_login_at TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_external_id
	ON users (external_id) WHERE external_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS api_keys (
	token TEXT PRIMARY KEY,
	scopes TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_login_states (
	state TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	remember_me BOOLEAN NOT NULL DEFAULT FALSE,
	api_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
`

// SQLStore implements CredentialStore over database/sql. Production runs
// on PostgreSQL (lib/pq); tests run the same queries on SQLite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a store and ensures the schema exists.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{db: db, now: time.Now}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// GetUserByEmail looks up a user record by email.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getUser(ctx, `
		SELECT id, name, email, password_hash, external_id, created_at, updated_at, last_login_at
		FROM users WHERE email = $1
	`, email)
}

// GetUserByExternalID looks up a user by the identity provider subject.
func (s *SQLStore) GetUserByExternalID(ctx context.Context, externalID string) (*auth.User, error) {
	return s.getUser(ctx, `
		SELECT id, name, email, password_hash, external_id, created_at, updated_at, last_login_at
		FROM users WHERE external_id = $1
	`, externalID)
}

func (s *SQLStore) getUser(ctx context.Context, query, arg string) (*auth.User, error) {
	user := &auth.User{}
	var externalID sql.NullString
	var lastLogin sql.NullTime

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&externalID, &user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user query failed: %w", err)
	}

	user.ExternalID = externalID.String
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return user, nil
}

// CreateUser inserts a new user record and returns its generated ID.
func (s *SQLStore) CreateUser(ctx context.Context, params CreateUserParams) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC()

	var externalID interface{}
	if params.ExternalID != "" {
		externalID = params.ExternalID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, params.Name, params.Email, params.PasswordHash, externalID, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateUser
		}
		return "", fmt.Errorf("user insert failed: %w", err)
	}

	return id, nil
}

// LinkExternalIdentity attaches an identity provider subject to an existing
// user.
func (s *SQLStore) LinkExternalIdentity(ctx context.Context, userID, externalID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET external_id = $1, updated_at = $2 WHERE id = $3
	`, externalID, s.now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("identity link failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("identity link failed: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("identity link failed: user %s not found", userID)
	}
	return nil
}

// TouchLastLogin records a successful login time.
func (s *SQLStore) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = $1 WHERE id = $2
	`, s.now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("last login update failed: %w", err)
	}
	return nil
}

// GetAPIKeyByToken looks up an API key record by its token.
func (s *SQLStore) GetAPIKeyByToken(ctx context.Context, token string) (*auth.APIKey, error) {
	var scopesJSON string
	key := &auth.APIKey{}

	err := s.db.QueryRowContext(ctx, `
		SELECT token, scopes FROM api_keys WHERE token = $1
	`, token).Scan(&key.Token, &scopesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("api key query failed: %w", err)
	}

	if err := json.Unmarshal([]byte(scopesJSON), &key.Scopes); err != nil {
		return nil, fmt.Errorf("failed to decode scopes for key: %w", err)
	}
	return key, nil
}

// CreateAPIKey inserts an API key record. Used by seeding and tests; the
// auth core itself never mutates keys.
func (s *SQLStore) CreateAPIKey(ctx context.Context, key *auth.APIKey) error {
	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return fmt.Errorf("failed to encode scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (token, scopes, created_at) VALUES ($1, $2, $3)
	`, key.Token, string(scopesJSON), s.now().UTC())
	if err != nil {
		return fmt.Errorf("api key insert failed: %w", err)
	}
	return nil
}

// SaveLoginState persists an OAuth state value.
func (s *SQLStore) SaveLoginState(ctx context.Context, state LoginState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_login_states (state, provider, remember_me, api_key, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, state.State, state.Provider, state.RememberMe, state.APIKey,
		state.CreatedAt.UTC(), state.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("login state insert failed: %w", err)
	}
	return nil
}

// ConsumeLoginState retrieves and deletes a state value in one transaction
// so each state is honored at most once.
func (s *SQLStore) ConsumeLoginState(ctx context.Context, state string) (*LoginState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ls := &LoginState{}
	err = tx.QueryRowContext(ctx, `
		SELECT state, provider, remember_me, api_key, created_at, expires_at
		FROM oauth_login_states WHERE state = $1
	`, state).Scan(&ls.State, &ls.Provider, &ls.RememberMe, &ls.APIKey, &ls.CreatedAt, &ls.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("login state query failed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_login_states WHERE state = $1`, state); err != nil {
		return nil, fmt.Errorf("login state delete failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ls, nil
}

// PruneExpiredLoginStates deletes states that expired before now.
func (s *SQLStore) PruneExpiredLoginStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM oauth_login_states WHERE expires_at < $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("login state prune failed: %w", err)
	}
	return res.RowsAffected()
}

// isUniqueViolation matches unique-constraint errors from both PostgreSQL
// ("duplicate key value violates unique constraint") and SQLite ("UNIQUE
// constraint failed") without depending on driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
