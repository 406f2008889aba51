package authkit

import (
	"context"
	"testing"
	"time"
)

func testIdentity(accountID string) *Identity {
	return &Identity{
		Account:     Account{ID: accountID, Email: accountID + "@example.com"},
		Roles:       []string{"USER"},
		Permissions: []string{"profile.read"},
	}
}

func TestMemoryIdentityCache_ExpiresByTTL(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryIdentityCache(5*time.Minute, clock.Now)
	ctx := context.Background()

	cache.Set(ctx, "acct-1", testIdentity("acct-1"))

	if id, ok := cache.Get(ctx, "acct-1"); !ok || id.Account.ID != "acct-1" {
		t.Fatalf("Get = %+v, %v", id, ok)
	}

	clock.Advance(5*time.Minute + time.Second)
	if _, ok := cache.Get(ctx, "acct-1"); ok {
		t.Fatal("expired entry served")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry not evicted, Len = %d", cache.Len())
	}
}

func TestMemoryIdentityCache_SetRefreshesExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryIdentityCache(5*time.Minute, clock.Now)
	ctx := context.Background()

	cache.Set(ctx, "acct-1", testIdentity("acct-1"))
	clock.Advance(4 * time.Minute)
	cache.Set(ctx, "acct-1", testIdentity("acct-1"))
	clock.Advance(4 * time.Minute)

	if _, ok := cache.Get(ctx, "acct-1"); !ok {
		t.Fatal("refreshed entry expired early")
	}
}

func TestMemoryIdentityCache_Invalidate(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryIdentityCache(5*time.Minute, clock.Now)
	ctx := context.Background()

	cache.Set(ctx, "acct-1", testIdentity("acct-1"))
	cache.Set(ctx, "acct-2", testIdentity("acct-2"))

	cache.Invalidate(ctx, "acct-1")
	if _, ok := cache.Get(ctx, "acct-1"); ok {
		t.Fatal("invalidated entry served")
	}
	if _, ok := cache.Get(ctx, "acct-2"); !ok {
		t.Fatal("unrelated entry dropped")
	}

	cache.InvalidateAll(ctx)
	if cache.Len() != 0 {
		t.Fatalf("InvalidateAll left %d entries", cache.Len())
	}
}

func TestMemoryIdentityCache_ReturnsCopies(t *testing.T) {
	cache := NewMemoryIdentityCache(5*time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, "acct-1", testIdentity("acct-1"))
	first, _ := cache.Get(ctx, "acct-1")
	first.Roles = append(first.Roles, "ADMIN")

	second, _ := cache.Get(ctx, "acct-1")
	if len(second.Roles) != 1 {
		t.Fatalf("caller mutation leaked into cache: %v", second.Roles)
	}
}
