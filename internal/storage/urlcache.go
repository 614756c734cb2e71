package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const urlCachePrefix = "smartreceipts:signed_url:"

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisURLCache stores signed URLs in Redis with an expiry shorter than the
// URL's own, so a cached URL is never handed out after it stopped working.
// Redis failures degrade to a cache miss.
type RedisURLCache struct {
	store cmdable
}

func NewRedisURLCache(store cmdable) *RedisURLCache {
	return &RedisURLCache{store: store}
}

// NewRedisClient opens the client backing the cache and checks connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (c *RedisURLCache) Get(ctx context.Context, path string) (string, bool) {
	url, err := c.store.Get(ctx, urlCachePrefix+path).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("failed to read signed url cache", "path", path, "error", err)
		}

		return "", false
	}

	return url, url != ""
}

func (c *RedisURLCache) Set(ctx context.Context, path, url string, ttl time.Duration) {
	if err := c.store.Set(ctx, urlCachePrefix+path, url, ttl).Err(); err != nil {
		slog.Warn("failed to write signed url cache", "path", path, "error", err)
	}
}

func (c *RedisURLCache) Delete(ctx context.Context, path string) {
	if err := c.store.Del(ctx, urlCachePrefix+path).Err(); err != nil {
		slog.Warn("failed to evict signed url cache", "path", path, "error", err)
	}
}
