package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CouponRepository interface {
	FindByName(ctx context.Context, name string) (model.Coupon, error)

	// 残数が1以上のときだけ1減らす。減らせたら true。
	// 同時利用の競合はここで直列化する。
	DecrementQuantityIfAvailable(ctx context.Context, couponID int64) (bool, error)

	Create(ctx context.Context, c model.Coupon) (model.Coupon, error)
	Update(ctx context.Context, c model.Coupon) error
}
