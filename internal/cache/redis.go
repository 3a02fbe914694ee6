// Package cache holds the optional Redis connection. It backs the CES field
// ID memo (FieldCache) and the proxy's per-IP token bucket
// (CheckIPRateLimit); the analytics score-event publisher writes to its
// stream through Client.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const clientName = "cesdash"

// Cache wraps one pooled Redis connection.
type Cache struct {
	client *redis.Client
}

// New dials redisURL and pings it once.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.ClientName = clientName
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: rdb}, nil
}

// Ping backs the /readyz cache check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the connection to the score-event publisher, which writes
// to its stream directly.
func (c *Cache) Client() *redis.Client {
	return c.client
}
