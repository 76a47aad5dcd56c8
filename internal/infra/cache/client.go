// Package cache is a read-through cache over the shared store with three
// selectable strategies: pass-through (negative caching against penetration),
// mutex-rebuild (one rebuild per key under a distributed lock) and
// logical-expiry (stale-while-revalidate with a bounded async rebuild pool).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"dealhub/internal/infra/lock"
	"dealhub/internal/pkg/clock"
	"dealhub/internal/pkg/config"
	"dealhub/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Store is the slice of the shared-store client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Loader fetches the entity from the authoritative store on a cache miss.
// A (nil, nil) return means the entity does not exist.
type Loader[T any] func(ctx context.Context) (*T, error)

type Client struct {
	store    Store
	locks    lock.Client
	clock    clock.Clock
	logger   *slog.Logger
	cacheCfg config.CacheConfig
	lockCfg  config.LockConfig
	rebuilds *errgroup.Group
}

func NewClient(
	store Store,
	locks lock.Client,
	clk clock.Clock,
	logger *slog.Logger,
	cacheCfg config.CacheConfig,
	lockCfg config.LockConfig,
) *Client {
	rebuilds := &errgroup.Group{}
	rebuilds.SetLimit(cacheCfg.RebuildWorkers)

	return &Client{
		store:    store,
		locks:    locks,
		clock:    clk,
		logger:   logger,
		cacheCfg: cacheCfg,
		lockCfg:  lockCfg,
		rebuilds: rebuilds,
	}
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(err, "failed to encode cache value "+key)
	}
	if err := c.store.Set(ctx, key, data, ttl).Err(); err != nil {
		return errs.Mark(errs.Wrap(err, "failed to write cache "+key), errs.ErrTransientStore)
	}
	return nil
}

// SetWithLogicalExpire writes the value wrapped with an application-level
// expiry timestamp. The store-level TTL is left unset: staleness is decided
// by readers, never by eviction. This is also the out-of-band warm-up entry
// point for the logical-expiry strategy.
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(err, "failed to encode cache value "+key)
	}
	e := entry{
		Data:     data,
		ExpireAt: c.clock.Now().Add(ttl),
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return errs.Wrap(err, "failed to encode cache entry "+key)
	}
	if err := c.store.Set(ctx, key, payload, 0).Err(); err != nil {
		return errs.Mark(errs.Wrap(err, "failed to write cache "+key), errs.ErrTransientStore)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.store.Del(ctx, key).Err(); err != nil {
		return errs.Mark(errs.Wrap(err, "failed to delete cache "+key), errs.ErrTransientStore)
	}
	return nil
}

// QueryPassThrough reads through the cache; a loader miss is cached as an
// empty marker with a short TTL so repeated lookups for absent keys stop
// reaching the authoritative store.
func QueryPassThrough[T any](ctx context.Context, c *Client, keyPrefix, id string, loader Loader[T], ttl time.Duration) (*T, error) {
	key := keyPrefix + id

	v, hit, err := getCached[T](ctx, c, key)
	if hit || err != nil {
		return v, err
	}

	return loadAndCache(ctx, c, key, loader, ttl)
}

// QueryWithMutex is the same read path, but a miss rebuilds the entry under
// the per-key distributed lock, so the loader runs at most once per key no
// matter how many readers miss concurrently. Losers sleep briefly and retry
// the whole read, bounded by LockConfig.MaxAttempts.
func QueryWithMutex[T any](ctx context.Context, c *Client, keyPrefix, id string, loader Loader[T], ttl time.Duration) (*T, error) {
	key := keyPrefix + id

	for attempt := 0; attempt < c.lockCfg.MaxAttempts; attempt++ {
		v, hit, err := getCached[T](ctx, c, key)
		if hit || err != nil {
			return v, err
		}

		l := lock.New(c.locks, key)
		ok, err := l.TryLock(ctx, c.lockCfg.Lease)
		if err != nil {
			return nil, err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.lockCfg.RetryInterval):
			}
			continue
		}

		return rebuildLocked(ctx, c, l, key, loader, ttl)
	}

	return nil, errs.ErrLockUnavailable
}

func rebuildLocked[T any](ctx context.Context, c *Client, l *lock.Lock, key string, loader Loader[T], ttl time.Duration) (*T, error) {
	defer func() {
		_ = l.Unlock(context.WithoutCancel(ctx))
	}()

	// A competing reader may have rebuilt the entry while we waited.
	v, hit, err := getCached[T](ctx, c, key)
	if hit || err != nil {
		return v, err
	}

	return loadAndCache(ctx, c, key, loader, ttl)
}

// QueryWithLogicalExpire never blocks the reader: a missing entry is absent
// (cold keys are warmed out of band), a fresh entry is returned as is, and an
// expired entry is returned stale while a rebuild is scheduled on the bounded
// pool if this reader wins the per-key lock.
func QueryWithLogicalExpire[T any](ctx context.Context, c *Client, keyPrefix, id string, loader Loader[T], ttl time.Duration) (*T, error) {
	key := keyPrefix + id

	raw, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "failed to read cache "+key), errs.ErrTransientStore)
	}
	if raw == "" {
		return nil, errs.ErrNotFound
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, errs.Wrap(err, "failed to decode cache entry "+key)
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return nil, errs.Wrap(err, "failed to decode cache value "+key)
	}

	if e.ExpireAt.After(c.clock.Now()) {
		return &v, nil
	}

	scheduleRebuild(ctx, c, key, loader, ttl)
	return &v, nil
}

// scheduleRebuild submits an asynchronous rebuild for an expired entry. The
// per-key lock is attempted non-blockingly; the lock is released on every
// path, including when the pool has no free worker.
func scheduleRebuild[T any](ctx context.Context, c *Client, key string, loader Loader[T], ttl time.Duration) {
	l := lock.New(c.locks, key)
	ok, err := l.TryLock(ctx, c.lockCfg.Lease)
	if err != nil {
		c.logger.Warn("cache rebuild lock acquire failed", "key", key, "error", err)
		return
	}
	if !ok {
		return
	}

	// The task must outlive the request that scheduled it.
	bg := context.WithoutCancel(ctx)

	started := c.rebuilds.TryGo(func() error {
		defer func() {
			_ = l.Unlock(bg)
		}()

		// A competing rebuild may have refreshed the entry between the
		// staleness check and winning the lock.
		if fresh, _ := c.entryFresh(bg, key); fresh {
			return nil
		}

		v, err := loader(bg)
		if err != nil {
			c.logger.Error("cache rebuild load failed", "key", key, "error", err)
			return nil
		}
		if v == nil {
			if err := c.store.Set(bg, key, "", c.cacheCfg.NullTTL).Err(); err != nil {
				c.logger.Error("cache rebuild empty-marker write failed", "key", key, "error", err)
			}
			return nil
		}
		if err := c.SetWithLogicalExpire(bg, key, v, ttl); err != nil {
			c.logger.Error("cache rebuild write failed", "key", key, "error", err)
		}
		return nil
	})
	if !started {
		_ = l.Unlock(bg)
	}
}

// entryFresh re-reads a logical-expiry entry and reports whether it is still
// within its expiry. A missing, empty or undecodable entry is not fresh.
func (c *Client) entryFresh(ctx context.Context, key string) (bool, error) {
	raw, err := c.store.Get(ctx, key).Result()
	if err != nil || raw == "" {
		return false, err
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return false, nil
	}
	return e.ExpireAt.After(c.clock.Now()), nil
}

// getCached reads the plain-TTL encoding. hit reports a decoded value;
// a cached empty marker surfaces as ErrNotFound without touching the loader.
func getCached[T any](ctx context.Context, c *Client, key string) (*T, bool, error) {
	raw, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Mark(errs.Wrap(err, "failed to read cache "+key), errs.ErrTransientStore)
	}
	if raw == "" {
		return nil, false, errs.ErrNotFound
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, errs.Wrap(err, "failed to decode cache value "+key)
	}
	return &v, true, nil
}

func loadAndCache[T any](ctx context.Context, c *Client, key string, loader Loader[T], ttl time.Duration) (*T, error) {
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		if err := c.store.Set(ctx, key, "", c.cacheCfg.NullTTL).Err(); err != nil {
			return nil, errs.Mark(errs.Wrap(err, "failed to cache empty marker "+key), errs.ErrTransientStore)
		}
		return nil, errs.ErrNotFound
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}
