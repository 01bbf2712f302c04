// Package cache は TTL 付きキーバリューキャッシュの契約と、その上に載る read-through ヘルパーを提供する。
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss はキーが存在しない(または期限切れ)ことを示す。
var ErrMiss = errors.New("cache: miss")

// Cache はバックエンド非依存のキャッシュ契約。複数キー間の原子性は保証しない。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix は prefix で始まる全キーを削除する。走査中に追加されたキーは残る可能性がある。
	DeleteByPrefix(ctx context.Context, prefix string) error
}
