package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const detailKeyPrefix = "openlibrary:isbn:"

// DetailCacheRedis keeps raw catalog payloads in Redis.
type DetailCacheRedis struct {
	rdb *redis.Client
}

func NewDetailCacheRedis(rdb *redis.Client) *DetailCacheRedis {
	return &DetailCacheRedis{rdb: rdb}
}

func (c *DetailCacheRedis) Get(ctx context.Context, isbn string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, detailKeyPrefix+isbn).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *DetailCacheRedis) Set(ctx context.Context, isbn string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, detailKeyPrefix+isbn, payload, ttl).Err()
}
