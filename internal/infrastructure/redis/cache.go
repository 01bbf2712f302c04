// Package redis は cache.Cache を Redis 上に実装する。
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/sngm3741/survey-platform/api/internal/cache"
)

const scanBatch = 100

// Options は Redis 接続設定。
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// Connect は Redis クライアントを生成し、Ping で疎通を確認してから返す。
func Connect(ctx context.Context, opts Options) (*goredis.Client, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 50
	}
	if opts.MinIdleConns <= 0 {
		opts.MinIdleConns = 5
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Cache は go-redis クライアントを cache.Cache として扱うアダプタ。
type Cache struct {
	client goredis.UniversalClient
}

var _ cache.Cache = (*Cache)(nil)

// NewCache は client を包んだ Cache を返す。
func NewCache(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeleteByPrefix は SCAN MATCH prefix* で見つかったキーをバッチ単位で削除する。
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del %q: %w", prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping はヘルスチェック用の疎通確認。
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
