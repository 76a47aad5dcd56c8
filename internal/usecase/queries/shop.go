package queries

import (
	"context"
	"strconv"
	"time"

	"dealhub/internal/domain/shop"
	"dealhub/internal/infra"
	"dealhub/internal/infra/cache"
	"dealhub/internal/pkg/config"
)

// ShopReadStore loads shops from the authoritative store.
type ShopReadStore interface {
	FindByID(ctx context.Context, id uint64) (*shop.Shop, error)
}

type ShopQueries interface {
	// GetByID reads through the cache with the configured strategy.
	GetByID(ctx context.Context, id uint64) (*shop.Shop, error)
	// WarmUp preloads a shop with a logical expiry; required before
	// logical-expiry reads can serve the key.
	WarmUp(ctx context.Context, id uint64, ttl time.Duration) error
}

type shopQueriesImpl struct {
	cache *cache.Client
	repo  ShopReadStore
	cfg   config.CacheConfig
}

func NewShopQueries(c *cache.Client, repo ShopReadStore, cfg config.CacheConfig) ShopQueries {
	return &shopQueriesImpl{cache: c, repo: repo, cfg: cfg}
}

func (q *shopQueriesImpl) GetByID(ctx context.Context, id uint64) (*shop.Shop, error) {
	key := strconv.FormatUint(id, 10)
	loader := q.loader(id)

	switch q.cfg.Strategy {
	case "pass-through":
		return cache.QueryPassThrough(ctx, q.cache, shop.CacheKeyPrefix, key, loader, q.cfg.ShopTTL)
	case "logical":
		return cache.QueryWithLogicalExpire(ctx, q.cache, shop.CacheKeyPrefix, key, loader, q.cfg.ShopTTL)
	default:
		return cache.QueryWithMutex(ctx, q.cache, shop.CacheKeyPrefix, key, loader, q.cfg.ShopTTL)
	}
}

func (q *shopQueriesImpl) WarmUp(ctx context.Context, id uint64, ttl time.Duration) error {
	s, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	key := shop.CacheKeyPrefix + strconv.FormatUint(id, 10)
	return q.cache.SetWithLogicalExpire(ctx, key, s, ttl)
}

// loader adapts the repository to the cache's absent-as-nil convention.
func (q *shopQueriesImpl) loader(id uint64) cache.Loader[shop.Shop] {
	return func(ctx context.Context) (*shop.Shop, error) {
		s, err := q.repo.FindByID(ctx, id)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return s, nil
	}
}
