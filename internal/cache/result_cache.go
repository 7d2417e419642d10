package cache

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// ResultCache keeps recent search responses in Redis. Entries are keyed by a
// generation counter that ingestion bumps on every index change, so stale
// results are never served; superseded generations age out via TTL.
type ResultCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewResultCache(client *redisv9.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	return &ResultCache{client: client, ttl: ttl}
}

// Get loads a cached response into dst. The bool reports whether a current
// generation entry existed.
func (c *ResultCache) Get(ctx context.Context, query string, topK int, dst interface{}) (bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return false, err
	}
	raw, err := c.client.Get(ctx, c.resultKey(gen, query, topK)).Result()
	if err == redisv9.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get search results failed: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("unmarshal cached results failed: %w", err)
	}
	return true, nil
}

func (c *ResultCache) Set(ctx context.Context, query string, topK int, value interface{}) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal search results cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.resultKey(gen, query, topK), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search results failed: %w", err)
	}
	return nil
}

// Invalidate advances the generation counter. Every cached entry written
// under an earlier generation becomes unreachable immediately.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("redis bump search generation failed: %w", err)
	}
	return nil
}

func (c *ResultCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err == redisv9.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get search generation failed: %w", err)
	}
	return gen, nil
}

func (c *ResultCache) resultKey(gen int64, query string, topK int) string {
	return fmt.Sprintf("search:results:g%d:k%d:%x", gen, topK, sha1.Sum([]byte(query)))
}

func (c *ResultCache) generationKey() string {
	return "search:index:gen"
}
