// Package cache is a thin Redis wrapper used to serve rendered account
// statements without hitting the journal on every request. Entries are
// invalidated whenever the account mutates, so a short TTL is only a
// backstop.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatementTTL bounds how long a cached statement page may outlive the
// invalidation on mutation.
const StatementTTL = 60 * time.Second

// StatementKey names the cache entry for an account's statement.
func StatementKey(accountNumber int) string {
	return "account:statement:" + strconv.Itoa(accountNumber)
}

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
}

// New dials Redis at addr.
func New(addr string) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	return &Cache{client: client}
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetJSON stores value marshaled as JSON under key.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON loads the value under key into dest. It reports false, without
// touching dest, on a cache miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}
