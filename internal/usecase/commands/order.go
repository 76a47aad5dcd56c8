package commands

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"dealhub/internal/domain/voucher"
	"dealhub/internal/infra/lock"
	"dealhub/internal/infra/repository"
	"dealhub/internal/infra/uow"
	"dealhub/internal/pkg/config"
	"dealhub/internal/pkg/errs"
)

const orderIDPurpose = "order"

// OrderCommands is the order admission pipeline: Submit makes the one atomic
// admission decision and enqueues the intent; Persist commits a delivered
// intent to the authoritative store exactly once.
type OrderCommands interface {
	Submit(ctx context.Context, voucherID, userID uint64) (uint64, error)
	Persist(ctx context.Context, intent voucher.OrderIntent) error
}

type orderCommandsImpl struct {
	ids     IDGenerator
	log     Admitter
	orders  OrderRepository
	uow     uow.UnitOfWork
	locks   lock.Client
	lockCfg config.LockConfig
	logger  *slog.Logger
}

func NewOrderCommands(
	ids IDGenerator,
	log Admitter,
	orders OrderRepository,
	unit uow.UnitOfWork,
	locks lock.Client,
	lockCfg config.LockConfig,
	logger *slog.Logger,
) OrderCommands {
	return &orderCommandsImpl{
		ids:     ids,
		log:     log,
		orders:  orders,
		uow:     unit,
		locks:   locks,
		lockCfg: lockCfg,
		logger:  logger,
	}
}

// Submit mints the order id, then runs the admission script. On success the
// intent is already on the order log and the id is returned without waiting
// for persistence; rejections come back as ErrOutOfStock or
// ErrDuplicateOrder and mutate nothing.
func (c *orderCommandsImpl) Submit(ctx context.Context, voucherID, userID uint64) (uint64, error) {
	orderID, err := c.ids.NextID(ctx, orderIDPurpose)
	if err != nil {
		return 0, err
	}

	if err := c.log.Admit(ctx, voucherID, userID, orderID); err != nil {
		return 0, err
	}

	return orderID, nil
}

// Persist commits one delivered intent. The per-user lock serializes commits
// for the same user across residual duplicate deliveries; the existence
// check inside the same transaction makes redelivery idempotent. Stock was
// already decremented at admission time, so none is decremented here.
//
// A held lock surfaces ErrLockUnavailable: the caller must not acknowledge
// the entry, so it is replayed once the lease expires. With a single
// consumer the holder can only be a stale lease from a crashed predecessor,
// possibly committing a different voucher for the same user.
func (c *orderCommandsImpl) Persist(ctx context.Context, intent voucher.OrderIntent) error {
	resource := "order:" + strconv.FormatUint(intent.UserID, 10)

	err := lock.WithLock(ctx, c.locks, resource, c.lockCfg.Lease, func(ctx context.Context) error {
		return c.uow.Within(ctx, func(ctx context.Context, tx repository.DBTX) error {
			exists, err := c.orders.Exists(ctx, tx, intent.UserID, intent.VoucherID)
			if err != nil {
				return err
			}
			if exists {
				c.logger.Warn("duplicate order delivery skipped",
					"userId", intent.UserID, "voucherId", intent.VoucherID)
				return nil
			}
			return c.orders.Create(ctx, tx, &voucher.Order{
				ID:        intent.OrderID,
				VoucherID: intent.VoucherID,
				UserID:    intent.UserID,
			})
		})
	})
	if errors.Is(err, errs.ErrLockUnavailable) {
		c.logger.Warn("order commit lock held, delivery will be replayed",
			"userId", intent.UserID, "orderId", intent.OrderID)
	}
	return err
}

// PublishSeckill seeds the stock mirror in the shared store ahead of a sale.
type VoucherCommands interface {
	PublishSeckill(ctx context.Context, voucherID uint64) error
}

type voucherCommandsImpl struct {
	vouchers VoucherRepository
	log      Admitter
}

func NewVoucherCommands(vouchers VoucherRepository, log Admitter) VoucherCommands {
	return &voucherCommandsImpl{vouchers: vouchers, log: log}
}

func (c *voucherCommandsImpl) PublishSeckill(ctx context.Context, voucherID uint64) error {
	v, err := c.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return err
	}
	return c.log.SeedStock(ctx, v.ID, v.Stock)
}
