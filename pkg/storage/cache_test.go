package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/pkg/auth"
)

// countingKeySource records how many lookups reach the backing store.
type countingKeySource struct {
	keys  map[string]*auth.APIKey
	calls int
}

func (c *countingKeySource) GetAPIKeyByToken(_ context.Context, token string) (*auth.APIKey, error) {
	c.calls++
	return c.keys[token], nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestKeyCache_ReadThrough(t *testing.T) {
	source := &countingKeySource{keys: map[string]*auth.APIKey{
		"KEY1": {Token: "KEY1", Scopes: []string{"read"}},
	}}
	cache := NewKeyCache(source, testRedis(t), DefaultConfig())

	ctx := context.Background()

	key, err := cache.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, 1, source.calls)

	// Second lookup is served from cache.
	key, err = cache.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, []string{"read"}, key.Scopes)
	assert.Equal(t, 1, source.calls)
}

func TestKeyCache_UnknownTokenNotCached(t *testing.T) {
	source := &countingKeySource{keys: map[string]*auth.APIKey{}}
	cache := NewKeyCache(source, nil, DefaultConfig())

	ctx := context.Background()

	key, err := cache.GetAPIKeyByToken(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, key)

	// Negative results always re-check the store.
	_, err = cache.GetAPIKeyByToken(ctx, "NOPE")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestKeyCache_LocalOnlyMode(t *testing.T) {
	source := &countingKeySource{keys: map[string]*auth.APIKey{
		"KEY1": {Token: "KEY1", Scopes: []string{"read"}},
	}}
	cache := NewKeyCache(source, nil, DefaultConfig())

	ctx := context.Background()

	_, err := cache.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	_, err = cache.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestKeyCache_Invalidate(t *testing.T) {
	source := &countingKeySource{keys: map[string]*auth.APIKey{
		"KEY1": {Token: "KEY1", Scopes: []string{"read"}},
	}}
	cache := NewKeyCache(source, testRedis(t), DefaultConfig())

	ctx := context.Background()

	_, err := cache.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)

	cache.Invalidate(ctx, "KEY1")

	_, err = cache.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestKeyCache_TTLClampedToTokenValidity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKeyCacheTTL = time.Hour // beyond token validity

	cache := NewKeyCache(&countingKeySource{}, nil, cfg)
	assert.Equal(t, auth.TokenTTL, cache.ttl)
}

func TestKeyCache_HitMissCounters(t *testing.T) {
	source := &countingKeySource{keys: map[string]*auth.APIKey{
		"KEY1": {Token: "KEY1", Scopes: []string{"read"}},
	}}
	cache := NewKeyCache(source, nil, DefaultConfig())

	hits, misses := 0, 0
	cache.OnHit = func() { hits++ }
	cache.OnMiss = func() { misses++ }

	ctx := context.Background()
	_, _ = cache.GetAPIKeyByToken(ctx, "KEY1")
	_, _ = cache.GetAPIKeyByToken(ctx, "KEY1")

	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, hits)
}

func TestKeyCache_SharedThroughRedis(t *testing.T) {
	redisClient := testRedis(t)
	cfg := DefaultConfig()

	source1 := &countingKeySource{keys: map[string]*auth.APIKey{
		"KEY1": {Token: "KEY1", Scopes: []string{"read"}},
	}}
	cache1 := NewKeyCache(source1, redisClient, cfg)

	source2 := &countingKeySource{keys: map[string]*auth.APIKey{
		"KEY1": {Token: "KEY1", Scopes: []string{"read"}},
	}}
	cache2 := NewKeyCache(source2, redisClient, cfg)

	ctx := context.Background()

	_, err := cache1.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)

	// A different process-local cache sees the redis entry and skips its
	// own store.
	key, err := cache2.GetAPIKeyByToken(ctx, "KEY1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, 0, source2.calls)
}
