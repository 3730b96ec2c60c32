package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type OrderItemRepository interface {
	// まとめて作成し、書けた件数を返す。
	// 件数が合わなければ呼び出し側がTxを中断する。
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) (int64, error)

	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
