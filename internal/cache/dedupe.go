// Package cache provides the optional Redis fast path in front of the
// dedup ledger. It is purely advisory: the ledger's storage-level
// uniqueness remains the only correctness guarantee, the cache just
// short-circuits the common duplicate-webhook burst cheaply.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultClaimTTL bounds how long a claim marker lives. It only needs to
// survive the window in which a provider retries the same webhook.
const DefaultClaimTTL = 10 * time.Minute

// DedupeClient wraps a go-redis client for dedupe-key claims.
type DedupeClient struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis and verifies connectivity. ttl <= 0 selects
// DefaultClaimTTL.
func New(ctx context.Context, addr, password string, ttl time.Duration) (*DedupeClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &DedupeClient{rdb: rdb, ttl: ttl}, nil
}

// Claim marks the dedupe key seen via SET NX and reports whether this
// caller was first. A false return means another dispatch already claimed
// the key within the TTL window.
func (c *DedupeClient) Claim(ctx context.Context, tenantID, dedupeKey string) (bool, error) {
	key := fmt.Sprintf("dedupe:%s:%s", tenantID, dedupeKey)
	set, err := c.rdb.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return set, nil
}

// Ping checks Redis connectivity.
func (c *DedupeClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *DedupeClient) Close() error {
	return c.rdb.Close()
}
