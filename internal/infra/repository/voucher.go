package repository

import (
	"context"
	"errors"

	"dealhub/internal/domain/voucher"
	"dealhub/internal/infra"

	"github.com/jackc/pgx/v5"
)

type VoucherRepository struct {
	db DBTX
}

func NewVoucherRepository(db DBTX) *VoucherRepository {
	return &VoucherRepository{db: db}
}

func (r *VoucherRepository) FindByID(ctx context.Context, id uint64) (*voucher.Voucher, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, shop_id, title, stock, begin_time, end_time
		FROM tb_seckill_voucher
		WHERE id = $1`, int64(id))

	var v voucher.Voucher
	err := row.Scan(&v.ID, &v.ShopID, &v.Title, &v.Stock, &v.BeginTime, &v.EndTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("voucher not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find voucher by id", err)
	}
	return &v, nil
}

// DecrementStockIfAvailable is the synchronous mirror of the admission
// script's decrement: optimistic, conditional on remaining stock, never
// drives the counter negative. Returns false when the voucher is sold out.
func (r *VoucherRepository) DecrementStockIfAvailable(ctx context.Context, voucherID uint64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tb_seckill_voucher
		SET stock = stock - 1
		WHERE id = $1 AND stock > 0`, int64(voucherID))
	if err != nil {
		return false, infra.WrapRepoErr("failed to decrement voucher stock", err)
	}
	return tag.RowsAffected() > 0, nil
}
