package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	rdb, err := OpenRedis(context.Background(), "redis://localhost:6379/15")
	if err != nil {
		t.Skipf("Skipping test: cannot reach redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestDetailCacheRedis(t *testing.T) {
	rdb := setupTestRedis(t)
	cache := NewDetailCacheRedis(rdb)
	ctx := context.Background()
	isbn := "0000000000000"
	t.Cleanup(func() { rdb.Del(ctx, detailKeyPrefix+isbn) })

	_, ok, err := cache.Get(ctx, isbn)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, isbn, []byte(`{"ISBN:0000000000000":{}}`), time.Minute))

	got, ok, err := cache.Get(ctx, isbn)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"ISBN:0000000000000":{}}`, string(got))

	ttl, err := rdb.TTL(ctx, detailKeyPrefix+isbn).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
