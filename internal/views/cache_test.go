package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stats struct {
	Keywords int `json:"keywords"`
}

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), s
}

func TestRememberCachesUntilInvalidated(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (stats, error) {
		calls++
		return stats{Keywords: calls}, nil
	}

	first, err := Remember(ctx, cache, "org-1", Dashboard, load)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	second, err := Remember(ctx, cache, "org-1", Dashboard, load)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if calls != 1 || second.Keywords != first.Keywords {
		t.Fatalf("expected cached value, calls=%d first=%+v second=%+v", calls, first, second)
	}

	if err := cache.Invalidate(ctx, "org-1", Dashboard); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	third, _ := Remember(ctx, cache, "org-1", Dashboard, load)
	if calls != 2 || third.Keywords != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d third=%+v", calls, third)
	}
}

func TestInvalidateAllScopesToOrganization(t *testing.T) {
	cache, s := setupCache(t)
	ctx := context.Background()

	for _, name := range []string{Dashboard, Keywords} {
		if err := cache.Set(ctx, "org-1", name, stats{Keywords: 1}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := cache.Set(ctx, "org-2", Dashboard, stats{Keywords: 9}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.Invalidate(ctx, "org-1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if s.Exists("views:org-1:dashboard") || s.Exists("views:org-1:keywords") {
		t.Fatal("org-1 views should be gone")
	}
	if !s.Exists("views:org-2:dashboard") {
		t.Fatal("org-2 view should survive")
	}
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	cache, s := setupCache(t)
	wantErr := errors.New("boom")
	_, err := Remember(context.Background(), cache, "org-1", Dashboard, func(context.Context) (stats, error) {
		return stats{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Remember() error = %v", err)
	}
	if s.Exists("views:org-1:dashboard") {
		t.Fatal("failed load must not be cached")
	}
}

func TestViewsExpire(t *testing.T) {
	cache, s := setupCache(t)
	ctx := context.Background()
	if err := cache.Set(ctx, "org-1", Members, []string{"a"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.FastForward(2 * time.Minute)
	var out []string
	ok, err := cache.Get(ctx, "org-1", Members, &out)
	if err != nil || ok {
		t.Fatalf("Get() after ttl = %v, %v; want miss", ok, err)
	}
}
