package commands

import (
	"context"
	"strconv"

	"dealhub/internal/domain/shop"
)

// ShopCommands is the cache-coherent write path: update the authoritative
// store first, then evict the cache entry so the next read rebuilds it.
type ShopCommands interface {
	Update(ctx context.Context, s *shop.Shop) error
}

type shopCommandsImpl struct {
	shops ShopRepository
	cache CacheEvictor
}

func NewShopCommands(shops ShopRepository, cache CacheEvictor) ShopCommands {
	return &shopCommandsImpl{shops: shops, cache: cache}
}

func (c *shopCommandsImpl) Update(ctx context.Context, s *shop.Shop) error {
	if err := c.shops.Update(ctx, s); err != nil {
		return err
	}
	return c.cache.Delete(ctx, shopCacheKey(s.ID))
}

func shopCacheKey(id uint64) string {
	return shop.CacheKeyPrefix + strconv.FormatUint(id, 10)
}
