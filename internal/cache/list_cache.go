package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "todohub:"

// ListCache caches a whole entity list under a single Redis key.
type ListCache[T any] struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewListCache returns a cache for the list of entity, e.g. "todo".
func NewListCache[T any](rdb *redis.Client, entity string, ttl time.Duration) *ListCache[T] {
	return &ListCache[T]{rdb: rdb, key: keyPrefix + entity + ":list", ttl: ttl}
}

// Key returns the Redis key the list is stored under.
func (c *ListCache[T]) Key() string { return c.key }

// Get returns the cached list. ok is false on a miss.
func (c *ListCache[T]) Get(ctx context.Context) (list []T, ok bool, err error) {
	b, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// Set stores the list.
func (c *ListCache[T]) Set(ctx context.Context, list []T) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, b, c.ttl).Err()
}

// Invalidate removes the cached list (cache invalidation on write). A nil
// cache is a no-op.
func (c *ListCache[T]) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key).Err()
}
