package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultLoadTimeout = 10 * time.Second

// ReadThrough は Cache を JSON ペイロードの read-through / write-invalidate 層として扱う。
// キャッシュ障害はログとメトリクスに記録したうえでバイパスし、呼び出し側へは返さない。
type ReadThrough struct {
	backend     Cache
	logger      *zap.Logger
	group       singleflight.Group
	loadTimeout time.Duration

	mu      sync.Mutex
	flights map[string]*flight
}

// flight は実行中のミスロード。ロード中に同じキーが削除・上書きされたら stale になり、結果を保存しない。
type flight struct {
	mu    sync.Mutex
	stale bool
}

// NewReadThrough は backend を包んだ ReadThrough を返す。logger が nil の場合は出力しない。
func NewReadThrough(backend Cache, logger *zap.Logger) *ReadThrough {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadThrough{
		backend:     backend,
		logger:      logger,
		loadTimeout: defaultLoadTimeout,
		flights:     make(map[string]*flight),
	}
}

// Lookup は key を参照し、ヒットすればデコードして返す。ミス時は load を呼び、
// 結果(nil は「存在しない」で JSON の null として保存)を policy に従って保存してから返す。
// 同一キーへの同時ミスは 1 回の load にまとめられる。load のエラーはキャッシュしない。
// まとめられた load は呼び出し元のキャンセルから切り離して実行し、各呼び出し元は自分の ctx だけを待つ。
// load 中に key が Invalidate / Store された場合、読み込んだ値は返すが保存はしない。
func Lookup[T any](ctx context.Context, rt *ReadThrough, key string, policy Policy, load func(context.Context) (*T, error)) (*T, error) {
	if raw, ok := rt.get(ctx, key); ok {
		value, err := decode[T](raw)
		if err == nil {
			return value, nil
		}
		rt.logger.Warn("破損したキャッシュエントリを破棄します", zap.String("key", key), zap.Error(err))
		rt.Invalidate(ctx, key)
	}

	ch := rt.group.DoChan(key, func() (any, error) {
		f := rt.begin(key)
		defer rt.end(key, f)

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.loadTimeout)
		defer cancel()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		ttl := policy.TTL
		if value == nil {
			ttl = policy.AbsentTTL
		}
		if ttl > 0 {
			f.mu.Lock()
			if !f.stale {
				rt.put(loadCtx, key, raw, ttl)
			}
			f.mu.Unlock()
		}
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return decode[T](res.Val.([]byte))
	}
}

// Store は value を JSON として key に保存する。書き込み後の再キャッシュに使う。
func (rt *ReadThrough) Store(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		rt.logger.Error("キャッシュ値のエンコードに失敗しました", zap.String("key", key), zap.Error(err))
		return
	}
	rt.supersede(func(k string) bool { return k == key })
	rt.put(ctx, key, raw, ttl)
}

// Invalidate は keys を削除する。失敗はログに残し、TTL による収束に委ねる。
func (rt *ReadThrough) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	rt.supersede(func(k string) bool {
		for _, key := range keys {
			if k == key {
				return true
			}
		}
		return false
	})
	if err := rt.backend.Delete(ctx, keys...); err != nil {
		writeErrorsTotal.WithLabelValues(keyspace(keys[0])).Inc()
		rt.logger.Warn("キャッシュの削除に失敗しました", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidatePrefix は prefix で始まる全キーを削除する。
func (rt *ReadThrough) InvalidatePrefix(ctx context.Context, prefix string) {
	rt.supersede(func(k string) bool { return strings.HasPrefix(k, prefix) })
	if err := rt.backend.DeleteByPrefix(ctx, prefix); err != nil {
		writeErrorsTotal.WithLabelValues(keyspace(prefix)).Inc()
		rt.logger.Warn("キャッシュのプレフィックス削除に失敗しました", zap.String("prefix", prefix), zap.Error(err))
	}
}

func (rt *ReadThrough) begin(key string) *flight {
	f := &flight{}
	rt.mu.Lock()
	rt.flights[key] = f
	rt.mu.Unlock()
	return f
}

func (rt *ReadThrough) end(key string, f *flight) {
	rt.mu.Lock()
	if rt.flights[key] == f {
		delete(rt.flights, key)
	}
	rt.mu.Unlock()
}

// supersede は match するキーの実行中ロードを stale にする。バックエンドへの削除・書き込みより前に呼ぶ。
func (rt *ReadThrough) supersede(match func(key string) bool) {
	rt.mu.Lock()
	var hit []*flight
	for key, f := range rt.flights {
		if match(key) {
			hit = append(hit, f)
		}
	}
	rt.mu.Unlock()

	for _, f := range hit {
		f.mu.Lock()
		f.stale = true
		f.mu.Unlock()
	}
}

func (rt *ReadThrough) get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := rt.backend.Get(ctx, key)
	switch {
	case err == nil:
		requestsTotal.WithLabelValues(keyspace(key), "hit").Inc()
		return raw, true
	case errors.Is(err, ErrMiss):
		requestsTotal.WithLabelValues(keyspace(key), "miss").Inc()
	default:
		requestsTotal.WithLabelValues(keyspace(key), "error").Inc()
		rt.logger.Warn("キャッシュ参照に失敗したためストアへフォールバックします", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

func (rt *ReadThrough) put(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if err := rt.backend.Set(ctx, key, raw, ttl); err != nil {
		writeErrorsTotal.WithLabelValues(keyspace(key)).Inc()
		rt.logger.Warn("キャッシュの書き込みに失敗しました", zap.String("key", key), zap.Error(err))
	}
}

func decode[T any](raw []byte) (*T, error) {
	var out *T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
