package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫が足りるときだけ引き当てる。
// スナップショット時点のチェックとは別に、ここでもう一度条件付きで減らす。
func (r *InventoryGormRepository) Reserve(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND amount >= ?", productID, qty).
		Updates(map[string]interface{}{
			"amount":   gorm.Expr("amount - ?", qty),
			"sale_out": gorm.Expr("sale_out + ?", qty),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 商品が無いのか在庫不足なのかを区別する
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Product{}).
			Where("id = ?", productID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return repo.ErrNotFound
		}
		return repo.ErrInsufficientStock
	}

	return r.recordMovement(ctx, productID, model.InventoryMovementReserve, qty)
}

// 在庫戻し（決済失敗・キャンセル）
func (r *InventoryGormRepository) Release(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"amount":   gorm.Expr("amount + ?", qty),
			"sale_out": gorm.Expr("sale_out - ?", qty),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}

	return r.recordMovement(ctx, productID, model.InventoryMovementRelease, qty)
}

func (r *InventoryGormRepository) recordMovement(ctx context.Context, productID int64, kind model.InventoryMovementKind, qty int64) error {
	mv := model.InventoryMovement{
		ProductID: productID,
		Kind:      kind,
		Quantity:  qty,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Create(&mv).Error
}
