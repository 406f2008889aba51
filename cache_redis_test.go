package authkit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedisCache(t *testing.T) (*RedisIdentityCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisIdentityCache(client, "", 5*time.Minute), srv
}

func TestRedisIdentityCache_RoundTrip(t *testing.T) {
	cache, srv := testRedisCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "acct-1"); ok {
		t.Fatal("hit on empty cache")
	}

	cache.Set(ctx, "acct-1", testIdentity("acct-1"))
	id, ok := cache.Get(ctx, "acct-1")
	if !ok || id.Account.ID != "acct-1" || len(id.Permissions) != 1 {
		t.Fatalf("Get = %+v, %v", id, ok)
	}

	// Expiry is enforced server-side.
	srv.FastForward(5*time.Minute + time.Second)
	if _, ok := cache.Get(ctx, "acct-1"); ok {
		t.Fatal("expired entry served")
	}
}

func TestRedisIdentityCache_Invalidate(t *testing.T) {
	cache, _ := testRedisCache(t)
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
}

func TestRedisIdentityCache_InvalidateAllHonorsPrefix(t *testing.T) {
	cache, srv := testRedisCache(t)
	ctx := context.Background()

	cache.Set(ctx, "acct-1", testIdentity("acct-1"))
	cache.Set(ctx, "acct-2", testIdentity("acct-2"))
	srv.Set("unrelated:key", "keep-me")

	cache.InvalidateAll(ctx)

	if _, ok := cache.Get(ctx, "acct-1"); ok {
		t.Fatal("acct-1 survived InvalidateAll")
	}
	if _, ok := cache.Get(ctx, "acct-2"); ok {
		t.Fatal("acct-2 survived InvalidateAll")
	}
	if !srv.Exists("unrelated:key") {
		t.Fatal("InvalidateAll deleted keys outside its prefix")
	}
}

func TestRedisIdentityCache_CorruptEntryIsAMiss(t *testing.T) {
	cache, srv := testRedisCache(t)
	ctx := context.Background()

	srv.Set("authkit:id:acct-1", "{not json")
	if _, ok := cache.Get(ctx, "acct-1"); ok {
		t.Fatal("corrupt entry served")
	}
	if srv.Exists("authkit:id:acct-1") {
		t.Fatal("corrupt entry not evicted")
	}
}
