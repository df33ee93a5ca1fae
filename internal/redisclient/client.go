package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

const idempotencyInFlight = "in-flight"

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// SetStock caches a product's stock quantity
func (c *Client) SetStock(ctx context.Context, productID int64, quantity int, ttl time.Duration) error {
	return c.rdb.Set(ctx, stockKey(productID), quantity, ttl).Err()
}

// SetStocks caches several stock quantities in one round trip
func (c *Client) SetStocks(ctx context.Context, quantities map[int64]int, ttl time.Duration) error {
	if len(quantities) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for productID, quantity := range quantities {
		pipe.Set(ctx, stockKey(productID), quantity, ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// GetStock returns a cached stock quantity. found is false on a cache miss.
func (c *Client) GetStock(ctx context.Context, productID int64) (quantity int, found bool, err error) {
	val, err := c.rdb.Get(ctx, stockKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	quantity, err = strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock cache entry for product %d: %w", productID, err)
	}
	return quantity, true, nil
}

// InvalidateStock drops cached quantities so the next read hits the database
func (c *Client) InvalidateStock(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = stockKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// ClaimIdempotencyKey marks a request key as in flight.
// It returns false if another request already holds or completed the key.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), idempotencyInFlight, ttl).Result()
}

// CompleteIdempotencyKey records the sale created for a request key
func (c *Client) CompleteIdempotencyKey(ctx context.Context, key string, saleID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), saleID, ttl).Err()
}

// ReleaseIdempotencyKey frees a key whose request failed so it can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// LookupIdempotencyKey returns the sale recorded for a key.
// inFlight is true while the first request is still running.
func (c *Client) LookupIdempotencyKey(ctx context.Context, key string) (saleID int64, inFlight bool, err error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if val == idempotencyInFlight {
		return 0, true, nil
	}

	saleID, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency entry %q: %w", key, err)
	}
	return saleID, false, nil
}

// AcquireLock acquires a distributed lock and returns the owner token
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock releases a distributed lock held by token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
