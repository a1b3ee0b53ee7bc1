package openlibrary

import (
	"context"
	"time"

	"bestsellers/internal/logger"
)

// Cache stores raw books API payloads by ISBN.
type Cache interface {
	Get(ctx context.Context, isbn string) ([]byte, bool, error)
	Set(ctx context.Context, isbn string, payload []byte, ttl time.Duration) error
}

// CachedClient serves repeated lookups from a Cache. Only non-empty answers are cached,
// so a record added to the catalog later is picked up on the next run.
type CachedClient struct {
	client *Client
	cache  Cache
	ttl    time.Duration
}

func NewCachedClient(client *Client, cache Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{client: client, cache: cache, ttl: ttl}
}

func (c *CachedClient) GetBookByISBN(ctx context.Context, isbn string) (map[string]BookDetails, error) {
	log := logger.FromContext(ctx)

	payload, ok, err := c.cache.Get(ctx, isbn)
	if err != nil {
		log.Warn().Err(err).Str("isbn", isbn).Msg("detail cache read failed")
	}
	if ok {
		if res, err := decodeBooks(ctx, isbn, payload); err == nil {
			return res, nil
		}
		log.Warn().Str("isbn", isbn).Msg("discarding undecodable cached detail")
	}

	body, err := c.client.fetch(ctx, isbn)
	if err != nil {
		return nil, err
	}
	res, err := decodeBooks(ctx, isbn, body)
	if err != nil {
		return nil, err
	}

	if len(res) > 0 {
		if err := c.cache.Set(ctx, isbn, body, c.ttl); err != nil {
			log.Warn().Err(err).Str("isbn", isbn).Msg("detail cache write failed")
		}
	}
	return res, nil
}
