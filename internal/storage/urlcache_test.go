package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/smartreceipts/internal/storage"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}

	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}

	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}

	f.values[key] = value.(string)
	f.ttls[key] = ttl

	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.values, k)
	}

	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisURLCache(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	cache := storage.NewRedisURLCache(rdb)

	_, ok := cache.Get(ctx, "u/receipts/a.jpg")
	assert.False(t, ok)

	cache.Set(ctx, "u/receipts/a.jpg", "https://signed", time.Hour)
	assert.Equal(t, time.Hour, rdb.ttls["smartreceipts:signed_url:u/receipts/a.jpg"])

	url, ok := cache.Get(ctx, "u/receipts/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "https://signed", url)

	cache.Delete(ctx, "u/receipts/a.jpg")

	_, ok = cache.Get(ctx, "u/receipts/a.jpg")
	assert.False(t, ok)
}

func TestRedisURLCache_ErrorsAreMisses(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	cache := storage.NewRedisURLCache(rdb)

	assert.NotPanics(t, func() {
		cache.Set(context.Background(), "p", "u", time.Minute)
	})

	_, ok := cache.Get(context.Background(), "p")
	assert.False(t, ok)
}
