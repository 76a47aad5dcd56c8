package repository

import (
	"context"
	"errors"

	"dealhub/internal/domain/shop"
	"dealhub/internal/infra"

	"github.com/jackc/pgx/v5"
)

type ShopRepository struct {
	db DBTX
}

func NewShopRepository(db DBTX) *ShopRepository {
	return &ShopRepository{db: db}
}

func (r *ShopRepository) FindByID(ctx context.Context, id uint64) (*shop.Shop, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, type_id, address, avg_price, sold, comments, score, created_at, updated_at
		FROM tb_shop
		WHERE id = $1`, int64(id))

	var s shop.Shop
	err := row.Scan(&s.ID, &s.Name, &s.TypeID, &s.Address, &s.AvgPrice, &s.Sold, &s.Comments, &s.Score, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("shop not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find shop by id", err)
	}
	return &s, nil
}

func (r *ShopRepository) Update(ctx context.Context, s *shop.Shop) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tb_shop
		SET name = $2, type_id = $3, address = $4, avg_price = $5, sold = $6, comments = $7, score = $8, updated_at = now()
		WHERE id = $1`,
		int64(s.ID), s.Name, int64(s.TypeID), s.Address, s.AvgPrice, s.Sold, s.Comments, s.Score)
	if err != nil {
		return infra.WrapRepoErr("failed to update shop", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("shop not found", nil, infra.KindNotFound)
	}
	return nil
}
