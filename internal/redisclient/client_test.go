package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestStockCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	_, found, err := client.GetStock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetStocks(ctx, map[int64]int{7: 3, 8: 10}, time.Minute))

	qty, found, err := client.GetStock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, qty)

	require.NoError(t, client.InvalidateStock(ctx, 7))
	_, found, err = client.GetStock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found)

	mr.FastForward(2 * time.Minute)
	_, found, err = client.GetStock(ctx, 8)
	require.NoError(t, err)
	assert.False(t, found, "entry should expire with its TTL")
}

func TestGetStock_CorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set("stock:1", "lots"))

	_, _, err := client.GetStock(context.Background(), 1)
	assert.Error(t, err)
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.ClaimIdempotencyKey(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ClaimIdempotencyKey(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	saleID, inFlight, err := client.LookupIdempotencyKey(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, inFlight)
	assert.Zero(t, saleID)

	require.NoError(t, client.CompleteIdempotencyKey(ctx, "abc", 42, time.Minute))
	saleID, inFlight, err = client.LookupIdempotencyKey(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, inFlight)
	assert.Equal(t, int64(42), saleID)

	require.NoError(t, client.ReleaseIdempotencyKey(ctx, "abc"))
	ok, err = client.ClaimIdempotencyKey(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockReleaseRequiresOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	token, ok, err := client.AcquireLock(ctx, "outbox", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = client.AcquireLock(ctx, "outbox", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, "outbox", "someone-else"))
	assert.True(t, mr.Exists("lock:outbox"))

	require.NoError(t, client.ReleaseLock(ctx, "outbox", token))
	assert.False(t, mr.Exists("lock:outbox"))
}
