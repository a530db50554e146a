package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeduel/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestRedisCacheGetMissingKey(t *testing.T) {
	rc, _ := newTestCache(t)
	value, err := rc.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Fatalf("expected empty value, got %q", value)
	}
}

func TestRedisCacheIncrAndExpire(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		n, err := rc.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("incr failed: %v", err)
		}
		if n != i {
			t.Fatalf("expected %d, got %d", i, n)
		}
	}
	if err := rc.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if mr.Exists("counter") {
		t.Fatalf("expected counter to expire")
	}
}

func TestRedisCacheLockOwnership(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := rc.TryLock(ctx, "lock:room", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock should succeed: ok=%v err=%v", ok, err)
	}
	ok, err = rc.TryLock(ctx, "lock:room", "owner-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock should fail: ok=%v err=%v", ok, err)
	}

	released, err := rc.Unlock(ctx, "lock:room", "owner-b")
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if released {
		t.Fatalf("foreign owner must not release the lock")
	}

	released, err = rc.Unlock(ctx, "lock:room", "owner-a")
	if err != nil || !released {
		t.Fatalf("owner unlock should succeed: released=%v err=%v", released, err)
	}

	ok, err = rc.TryLock(ctx, "lock:room", "owner-b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock should be free again: ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheTryLockRequiresOwner(t *testing.T) {
	rc, _ := newTestCache(t)
	if _, err := rc.TryLock(context.Background(), "lock:room", "", time.Minute); err == nil {
		t.Fatalf("expected error for empty owner")
	}
}

func TestGetWithCached(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "payload", nil
	}
	identity := func(s string) string { return s }
	parse := func(s string) (string, error) { return s, nil }
	isEmpty := func(s string) bool { return s == "" }

	for i := 0; i < 2; i++ {
		got, err := cache.GetWithCached(ctx, rc, "k", time.Minute, time.Second, isEmpty, identity, parse, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "payload" {
			t.Fatalf("unexpected value %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}

	emptyCalls := 0
	emptyFetch := func(context.Context) (string, error) {
		emptyCalls++
		return "", nil
	}
	for i := 0; i < 2; i++ {
		if _, err := cache.GetWithCached(ctx, rc, "empty", time.Minute, time.Minute, isEmpty, identity, parse, emptyFetch); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if emptyCalls != 1 {
		t.Fatalf("expected null value to be cached, got %d fetches", emptyCalls)
	}

	wantErr := errors.New("boom")
	_, err := cache.GetWithCached(ctx, rc, "fail", time.Minute, 0, isEmpty, identity, parse, func(context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestJitterTTL(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 20; i++ {
		got := cache.JitterTTL(base)
		if got > base || got < base-base/10 {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
	if cache.JitterTTL(0) != 0 {
		t.Fatalf("zero ttl must stay zero")
	}
}
