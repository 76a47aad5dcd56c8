package commands

import (
	"context"

	"dealhub/internal/domain/shop"
	"dealhub/internal/domain/voucher"
	"dealhub/internal/infra/repository"
)

// Ports implemented by the infra layer.

type IDGenerator interface {
	NextID(ctx context.Context, purpose string) (uint64, error)
}

type Admitter interface {
	Admit(ctx context.Context, voucherID, userID, orderID uint64) error
	SeedStock(ctx context.Context, voucherID uint64, stock int32) error
}

type OrderRepository interface {
	Exists(ctx context.Context, db repository.DBTX, userID, voucherID uint64) (bool, error)
	Create(ctx context.Context, db repository.DBTX, o *voucher.Order) error
}

type ShopRepository interface {
	Update(ctx context.Context, s *shop.Shop) error
}

type VoucherRepository interface {
	FindByID(ctx context.Context, id uint64) (*voucher.Voucher, error)
}

type SignInTracker interface {
	Sign(ctx context.Context, userID uint64) error
	StreakCount(ctx context.Context, userID uint64) (int, error)
}

type CacheEvictor interface {
	Delete(ctx context.Context, key string) error
}
