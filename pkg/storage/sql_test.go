package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/pkg/auth"
)

// setupTestStore runs the real schema and queries against in-memory SQLite;
// the SQL is written to the portable subset both engines accept.
func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// A second pool connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLStore_CreateUser_Lookup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, CreateUserParams{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$fakehash",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	user, err := store.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "$2a$10$fakehash", user.PasswordHash)
	assert.Empty(t, user.ExternalID)
	assert.Nil(t, user.LastLoginAt)
}

func TestSQLStore_GetUserByEmail_NotFound(t *testing.T) {
	store := setupTestStore(t)

	user, err := store.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSQLStore_CreateUser_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, CreateUserParams{Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, CreateUserParams{Email: "a@x.com", PasswordHash: "h2"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestSQLStore_ExternalIdentity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Provisioned directly from the identity provider.
	id, err := store.CreateUser(ctx, CreateUserParams{
		Name:       "SSO User",
		Email:      "sso@example.com",
		ExternalID: "google-sub-1",
	})
	require.NoError(t, err)

	user, err := store.GetUserByExternalID(ctx, "google-sub-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)
	assert.Empty(t, user.PasswordHash)

	missing, err := store.GetUserByExternalID(ctx, "google-sub-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLStore_LinkExternalIdentity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, CreateUserParams{Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, store.LinkExternalIdentity(ctx, id, "google-sub-2"))

	user, err := store.GetUserByExternalID(ctx, "google-sub-2")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)

	// Linking an unknown user fails loudly.
	assert.Error(t, store.LinkExternalIdentity(ctx, "missing-id", "google-sub-3"))
}

func TestSQLStore_TouchLastLogin(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, CreateUserParams{Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, store.TouchLastLogin(ctx, id))

	user, err := store.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *user.LastLoginAt, time.Minute)
}

func TestSQLStore_APIKeys(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAPIKey(ctx, &auth.APIKey{
		Token:  "KEY1",
		Scopes: []string{"read", "write"},
	}))

	key, err := store.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "KEY1", key.Token)
	assert.Equal(t, []string{"read", "write"}, key.Scopes)

	missing, err := store.GetAPIKeyByToken(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLStore_LoginState_SingleUse(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveLoginState(ctx, LoginState{
		State:      "state-1",
		Provider:   "google",
		RememberMe: true,
		APIKey:     "KEY1",
		CreatedAt:  now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}))

	state, err := store.ConsumeLoginState(ctx, "state-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "google", state.Provider)
	assert.True(t, state.RememberMe)
	assert.Equal(t, "KEY1", state.APIKey)

	// Second consumption fails: states are single use.
	state, err = store.ConsumeLoginState(ctx, "state-1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSQLStore_ConsumeLoginState_Unknown(t *testing.T) {
	store := setupTestStore(t)

	state, err := store.ConsumeLoginState(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSQLStore_PruneExpiredLoginStates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveLoginState(ctx, LoginState{
		State: "expired", Provider: "google",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-50 * time.Minute),
	}))
	require.NoError(t, store.SaveLoginState(ctx, LoginState{
		State: "live", Provider: "google",
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	pruned, err := store.PruneExpiredLoginStates(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	state, err := store.ConsumeLoginState(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, state)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}
