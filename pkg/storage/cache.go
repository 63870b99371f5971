package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/reelgate/reelgate/pkg/auth"
)

// KeyCache is a read-through cache in front of API-key lookups. Redis is
// used when configured; an in-process expirable LRU serves as the fallback
// so single-node deployments still avoid a store round trip per login.
// The TTL must stay at or below the token validity window so a revoked key
// cannot outlive the tokens it minted.
type KeyCache struct {
	source auth.KeySource
	redis  *redis.Client
	local  *lru.LRU[string, *auth.APIKey]
	ttl    time.Duration

	// Hit and miss counters are observed by the metrics layer.
	OnHit  func()
	OnMiss func()
}

// NewKeyCache creates a cache over the given source. redisClient may be
// nil, in which case only the local LRU is used.
func NewKeyCache(source auth.KeySource, redisClient *redis.Client, cfg Config) *KeyCache {
	ttl := cfg.APIKeyCacheTTL
	if ttl <= 0 || ttl > auth.TokenTTL {
		ttl = auth.TokenTTL
	}
	size := cfg.APIKeyCacheSize
	if size <= 0 {
		size = 1024
	}

	return &KeyCache{
		source: source,
		redis:  redisClient,
		local:  lru.NewLRU[string, *auth.APIKey](size, nil, ttl),
		ttl:    ttl,
	}
}

// GetAPIKeyByToken resolves a key through the cache layers. Negative
// results are not cached: unknown tokens always hit the store, so a freshly
// provisioned key is usable immediately.
func (c *KeyCache) GetAPIKeyByToken(ctx context.Context, token string) (*auth.APIKey, error) {
	if key, ok := c.local.Get(token); ok {
		c.hit()
		return key, nil
	}

	if c.redis != nil {
		if key, err := c.getRedis(ctx, token); err == nil && key != nil {
			c.hit()
			c.local.Add(token, key)
			return key, nil
		}
		// Redis errors fall through to the store; caching is best effort.
	}

	c.miss()
	key, err := c.source.GetAPIKeyByToken(ctx, token)
	if err != nil || key == nil {
		return key, err
	}

	c.local.Add(token, key)
	if c.redis != nil {
		c.setRedis(ctx, key)
	}
	return key, nil
}

func (c *KeyCache) getRedis(ctx context.Context, token string) (*auth.APIKey, error) {
	data, err := c.redis.Get(ctx, redisKeyFor(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	key := &auth.APIKey{}
	if err := json.Unmarshal([]byte(data), key); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		c.redis.Del(ctx, redisKeyFor(token))
		return nil, nil
	}
	return key, nil
}

func (c *KeyCache) setRedis(ctx context.Context, key *auth.APIKey) {
	data, err := json.Marshal(key)
	if err != nil {
		return
	}
	c.redis.Set(ctx, redisKeyFor(key.Token), data, c.ttl)
}

// Invalidate drops a token from all cache layers.
func (c *KeyCache) Invalidate(ctx context.Context, token string) {
	c.local.Remove(token)
	if c.redis != nil {
		c.redis.Del(ctx, redisKeyFor(token))
	}
}

func redisKeyFor(token string) string {
	return "apikey:" + token
}

func (c *KeyCache) hit() {
	if c.OnHit != nil {
		c.OnHit()
	}
}

func (c *KeyCache) miss() {
	if c.OnMiss != nil {
		c.OnMiss()
	}
}

// NewRedisClient connects a Redis client with conservative timeouts, or
// returns nil when no URL is configured.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
