package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache keeps the gateway bearer token between calls. Get reports
// false when no unexpired token is cached.
type TokenCache interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context) error
}

type memoryTokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryTokenCache is the single-replica cache.
func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{now: time.Now}
}

func (c *memoryTokenCache) Get(_ context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false, nil
	}
	return c.token, true, nil
}

func (c *memoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	return nil
}

func (c *memoryTokenCache) Delete(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
	return nil
}

type redisTokenCache struct {
	client redis.UniversalClient
	key    string
}

// NewRedisTokenCache shares one token across replicas so they do not each
// hit the OAuth endpoint.
func NewRedisTokenCache(client redis.UniversalClient, key string) TokenCache {
	if key == "" {
		key = "mpesa:access_token"
	}
	return &redisTokenCache{client: client, key: key}
}

func (c *redisTokenCache) Get(ctx context.Context) (string, bool, error) {
	token, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (c *redisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key, token, ttl).Err()
}

func (c *redisTokenCache) Delete(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
