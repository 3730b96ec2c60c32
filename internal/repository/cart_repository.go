package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)

	// カート本体と明細をまとめて削除する（注文確定時）。
	Destroy(ctx context.Context, cartID int64) error
}
