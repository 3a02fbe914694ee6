package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// cesFieldKeyPrefix is the Redis key prefix for resolved CES field IDs.
	cesFieldKeyPrefix = "cesdash:ces_field_id:"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// FieldCache memoizes the resolved CES custom field ID per upstream account.
// A cached zero means the catalog had no matching field.
type FieldCache struct {
	cache *Cache
	scope string
	ttl   time.Duration
}

// NewFieldCache scopes cached field IDs to an upstream account (e.g. its base URL).
func NewFieldCache(c *Cache, scope string, ttl time.Duration) *FieldCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &FieldCache{cache: c, scope: scope, ttl: ttl}
}

// GetCESFieldID returns the cached field ID or ErrCacheMiss.
func (f *FieldCache) GetCESFieldID(ctx context.Context) (int64, error) {
	raw, err := f.cache.client.Get(ctx, f.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("get ces field id: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached ces field id: %w", err)
	}
	return id, nil
}

// SetCESFieldID caches a resolved field ID.
func (f *FieldCache) SetCESFieldID(ctx context.Context, id int64) error {
	if err := f.cache.client.Set(ctx, f.key(), strconv.FormatInt(id, 10), f.ttl).Err(); err != nil {
		return fmt.Errorf("set ces field id: %w", err)
	}
	return nil
}

// Invalidate drops the cached field ID.
func (f *FieldCache) Invalidate(ctx context.Context) error {
	return f.cache.client.Del(ctx, f.key()).Err()
}

func (f *FieldCache) key() string {
	return cesFieldKeyPrefix + hashKey(f.scope)
}
