package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 在庫不足。引き当て時点で再チェックした結果。
var ErrInsufficientStock = errors.New("insufficient stock")

// 一意制約違反（charge_idの二重登録など）。
var ErrDuplicate = errors.New("duplicate")

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
}

// 在庫台帳。引き当て・戻しは必ず呼び出し側のTxの中で実行する。
type InventoryRepository interface {
	// 在庫が足りるときだけ amount を減らし sale_out を増やす。
	// 足りなければ ErrInsufficientStock。
	Reserve(ctx context.Context, productID int64, qty int64) error

	// Reserveの逆操作（決済失敗・キャンセル時の在庫戻し）。
	Release(ctx context.Context, productID int64, qty int64) error
}
