package authkit

import (
	"context"
	"sync"
	"time"
)

// IdentityCache holds resolved identities for at most the configured TTL.
// Implementations are best-effort: a miss or a backend failure just means
// the Engine falls through to the store. The Engine owns invalidation and
// calls Invalidate whenever a write touches an account's password, roles,
// or verification state.
type IdentityCache interface {
	Get(ctx context.Context, accountID string) (*Identity, bool)
	Set(ctx context.Context, accountID string, id *Identity)
	Invalidate(ctx context.Context, accountID string)
	InvalidateAll(ctx context.Context)
}

type cachedIdentity struct {
	identity  Identity
	expiresAt time.Time
}

// MemoryIdentityCache is the default process-local identity cache: a
// mutex-guarded map with lazy expiry on read. Staleness is bounded by the
// TTL; other processes do not observe invalidations.
type MemoryIdentityCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedIdentity
}

// NewMemoryIdentityCache creates a cache with the given TTL. now defaults
// to time.Now when nil.
func NewMemoryIdentityCache(ttl time.Duration, now func() time.Time) *MemoryIdentityCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdentityCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedIdentity),
	}
}

func (c *MemoryIdentityCache) Get(_ context.Context, accountID string) (*Identity, bool) {
	c.mu.RLock()
	entry, ok := c.entries[accountID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !entry.expiresAt.After(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[accountID]; ok && !cur.expiresAt.After(c.now()) {
			delete(c.entries, accountID)
		}
		c.mu.Unlock()
		return nil, false
	}

	id := entry.identity
	return &id, true
}

func (c *MemoryIdentityCache) Set(_ context.Context, accountID string, id *Identity) {
	if id == nil {
		return
	}
	c.mu.Lock()
	c.entries[accountID] = cachedIdentity{
		identity:  *id,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *MemoryIdentityCache) Invalidate(_ context.Context, accountID string) {
	c.mu.Lock()
	delete(c.entries, accountID)
	c.mu.Unlock()
}

func (c *MemoryIdentityCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]cachedIdentity)
	c.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (c *MemoryIdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
