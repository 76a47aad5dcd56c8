package repository

import (
	"context"

	"dealhub/internal/domain/voucher"
	"dealhub/internal/infra"
)

// OrderRepository persists voucher orders. Methods take a DBTX so the
// consumer's exists-check and insert can share one transaction.
type OrderRepository struct{}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

func (r *OrderRepository) Exists(ctx context.Context, db DBTX, userID, voucherID uint64) (bool, error) {
	row := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tb_voucher_order WHERE user_id = $1 AND voucher_id = $2
		)`, int64(userID), int64(voucherID))

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, infra.WrapRepoErr("failed to check order existence", err)
	}
	return exists, nil
}

func (r *OrderRepository) Create(ctx context.Context, db DBTX, o *voucher.Order) error {
	_, err := db.Exec(ctx, `
		INSERT INTO tb_voucher_order (id, user_id, voucher_id, created_at)
		VALUES ($1, $2, $3, now())`,
		int64(o.ID), int64(o.UserID), int64(o.VoucherID))
	if err != nil {
		return infra.WrapRepoErr("failed to create voucher order", err)
	}
	return nil
}
