package authkit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdentityCache is an [IdentityCache] backed by Redis, for deployments
// that want invalidations visible across instances. Entries are JSON with a
// server-side TTL, so expiry needs no sweeper. All operations are
// best-effort; backend errors are logged and surface as cache misses.
type RedisIdentityCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisIdentityCache creates a cache over client. prefix defaults to
// "authkit:id:" when empty.
func NewRedisIdentityCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIdentityCache {
	if prefix == "" {
		prefix = "authkit:id:"
	}
	return &RedisIdentityCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisIdentityCache) key(accountID string) string {
	return c.prefix + accountID
}

func (c *RedisIdentityCache) Get(ctx context.Context, accountID string) (*Identity, bool) {
	payload, err := c.client.Get(ctx, c.key(accountID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("authkit: redis cache get: %v", err)
		}
		return nil, false
	}

	var id Identity
	if err := json.Unmarshal(payload, &id); err != nil {
		// Unreadable entry, evict it.
		c.client.Del(ctx, c.key(accountID))
		return nil, false
	}
	return &id, true
}

func (c *RedisIdentityCache) Set(ctx context.Context, accountID string, id *Identity) {
	if id == nil {
		return
	}
	payload, err := json.Marshal(id)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(accountID), payload, c.ttl).Err(); err != nil {
		log.Printf("authkit: redis cache set: %v", err)
	}
}

func (c *RedisIdentityCache) Invalidate(ctx context.Context, accountID string) {
	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		log.Printf("authkit: redis cache invalidate: %v", err)
	}
}

// InvalidateAll scans the key prefix in batches. It is an administrative
// operation, not a hot path.
func (c *RedisIdentityCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 512).Result()
		if err != nil {
			log.Printf("authkit: redis cache scan: %v", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				log.Printf("authkit: redis cache invalidate all: %v", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
