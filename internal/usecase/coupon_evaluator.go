package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// applyCoupon はクーポンを検証して割引後の合計（最小通貨単位）を返す。
// 検証は 存在→期限→残数→所有者→カテゴリ の順で、どれか1つでも
// 落ちたら決済全体を中断する（部分適用はしない）。
// 成功時は同じTxの中で残数を1減らす。
func applyCoupon(ctx context.Context, r repo.TxRepos, name string, userID int64, items []CartLineItem, totalAmount int64) (int64, model.Coupon, error) {
	coupon, err := r.Coupons().FindByName(ctx, name)
	if err == repo.ErrNotFound {
		return 0, model.Coupon{}, NewHTTPError(http.StatusNotFound, "coupon not found")
	}
	if err != nil {
		return 0, model.Coupon{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if !coupon.IsActive || coupon.ValidUntil.Before(time.Now()) {
		return 0, model.Coupon{}, NewHTTPError(http.StatusBadRequest, "coupon is expired")
	}

	if coupon.Quantity <= 0 {
		return 0, model.Coupon{}, NewHTTPError(http.StatusConflict, "coupon has reached maximum usage limit")
	}

	if coupon.UserID != nil && *coupon.UserID != userID {
		return 0, model.Coupon{}, NewHTTPError(http.StatusBadRequest, "coupon is not associated with the given user")
	}

	if coupon.ProductID != nil {
		for _, it := range items {
			if it.ProductID != *coupon.ProductID {
				return 0, model.Coupon{}, NewHTTPError(http.StatusBadRequest,
					"coupon is not supported for this item: "+it.Name)
			}
		}
	}

	for _, it := range items {
		if it.Category != coupon.Category {
			return 0, model.Coupon{}, NewHTTPError(http.StatusBadRequest,
				"coupon is not supported for this item: "+it.Name)
		}
	}

	// 残数1を同時に使われても勝てるのは1回だけ
	ok, err := r.Coupons().DecrementQuantityIfAvailable(ctx, coupon.ID)
	if err != nil {
		return 0, model.Coupon{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !ok {
		return 0, model.Coupon{}, NewHTTPError(http.StatusConflict, "coupon has reached maximum usage limit")
	}

	adjusted := discountedTotal(totalAmount, coupon.DiscountPercentage)
	return adjusted, coupon, nil
}

// discountedTotal は total × (1 - pct/100) を最小通貨単位に切り捨てる。
func discountedTotal(totalAmount int64, pct int64) int64 {
	total := decimal.NewFromInt(totalAmount)
	rate := decimal.NewFromInt(100 - pct).Div(decimal.NewFromInt(100))
	return total.Mul(rate).Floor().IntPart()
}
