// Package views caches derived organization views in Redis and drops them
// when a mutation changes their inputs.
package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	Dashboard    = "dashboard"
	Keywords     = "keywords"
	Negotiations = "negotiations"
	Evidences    = "evidences"
	Members      = "members"
	Invitations  = "invitations"
	Integrations = "integrations"
	Organization = "organization"
)

type Cache interface {
	Get(ctx context.Context, organizationID, name string, dest any) (bool, error)
	Set(ctx context.Context, organizationID, name string, value any) error
	// Invalidate drops the named views, or every view of the organization
	// when no names are given.
	Invalidate(ctx context.Context, organizationID string, names ...string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func key(organizationID, name string) string {
	return "views:" + organizationID + ":" + name
}

func (c *RedisCache) Get(ctx context.Context, organizationID, name string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key(organizationID, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read view %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode view %s: %w", name, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, organizationID, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode view %s: %w", name, err)
	}
	if err := c.client.Set(ctx, key(organizationID, name), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write view %s: %w", name, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, organizationID string, names ...string) error {
	var keys []string
	if len(names) == 0 {
		iter := c.client.Scan(ctx, 0, key(organizationID, "*"), 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan views: %w", err)
		}
	} else {
		for _, name := range names {
			keys = append(keys, key(organizationID, name))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate views: %w", err)
	}
	return nil
}

// Nop never caches.
type Nop struct{}

func (Nop) Get(context.Context, string, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, string, any) error         { return nil }
func (Nop) Invalidate(context.Context, string, ...string) error    { return nil }

// Remember serves name from the cache or computes and stores it. Cache
// failures fall through to load.
func Remember[T any](ctx context.Context, cache Cache, organizationID, name string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if ok, err := cache.Get(ctx, organizationID, name, &cached); err == nil && ok {
		return cached, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	_ = cache.Set(ctx, organizationID, name, value)
	return value, nil
}
