package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// CouponUsecase は管理者によるクーポンの作成・更新。
// 変更は監査ログと同じTxで書く。
type CouponUsecase struct {
	tx repo.TransactionManager
}

func NewCouponUsecase(tx repo.TransactionManager) *CouponUsecase {
	return &CouponUsecase{tx: tx}
}

type CreateCouponInput struct {
	Name               string
	UserID             *int64
	ProductID          *int64
	Category           string
	Quantity           int64
	DiscountPercentage int64
	ValidUntil         time.Time
	IsActive           bool
}

// UpdateCouponInput はnilのフィールドを変更しない部分更新。
type UpdateCouponInput struct {
	Quantity           *int64
	DiscountPercentage *int64
	ValidUntil         *time.Time
	IsActive           *bool
}

func (u *CouponUsecase) Create(ctx context.Context, actorUserID int64, in CreateCouponInput) (model.Coupon, error) {
	if in.Name == "" {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "coupon name is required")
	}
	if err := validateCouponFields(in.Quantity, in.DiscountPercentage, in.ValidUntil); err != nil {
		return model.Coupon{}, err
	}

	var created model.Coupon

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Coupons().Create(ctx, model.Coupon{
			Name:               in.Name,
			UserID:             in.UserID,
			ProductID:          in.ProductID,
			Category:           in.Category,
			Quantity:           in.Quantity,
			DiscountPercentage: in.DiscountPercentage,
			ValidUntil:         in.ValidUntil,
			IsActive:           in.IsActive,
		})
		if err == repo.ErrDuplicate {
			return NewHTTPError(http.StatusConflict, "coupon name already exists")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		created = c

		return u.writeCouponAuditLog(ctx, r, actorUserID, c.ID, model.Coupon{}, c)
	})
	if err != nil {
		return model.Coupon{}, err
	}
	return created, nil
}

func (u *CouponUsecase) Update(ctx context.Context, actorUserID int64, name string, in UpdateCouponInput) (model.Coupon, error) {
	var updated model.Coupon

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Coupons().FindByName(ctx, name)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "coupon not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		after := before
		if in.Quantity != nil {
			after.Quantity = *in.Quantity
		}
		if in.DiscountPercentage != nil {
			after.DiscountPercentage = *in.DiscountPercentage
		}
		if in.ValidUntil != nil {
			after.ValidUntil = *in.ValidUntil
		}
		if in.IsActive != nil {
			after.IsActive = *in.IsActive
		}

		if err := validateCouponFields(after.Quantity, after.DiscountPercentage, after.ValidUntil); err != nil {
			return err
		}

		if err := r.Coupons().Update(ctx, after); err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "coupon not found")
		} else if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		updated = after

		return u.writeCouponAuditLog(ctx, r, actorUserID, before.ID, before, after)
	})
	if err != nil {
		return model.Coupon{}, err
	}
	return updated, nil
}

func validateCouponFields(quantity, discount int64, validUntil time.Time) error {
	if quantity < 0 {
		return NewHTTPError(http.StatusBadRequest, "quantity must not be negative")
	}
	if discount < 1 || discount > 100 {
		return NewHTTPError(http.StatusBadRequest, "discount percentage must be between 1 and 100")
	}
	if validUntil.IsZero() {
		return NewHTTPError(http.StatusBadRequest, "valid until is required")
	}
	return nil
}

func (u *CouponUsecase) writeCouponAuditLog(ctx context.Context, r repo.TxRepos, actorUserID, couponID int64, before, after model.Coupon) error {
	type couponSnapshot struct {
		Name               string    `json:"name,omitempty"`
		Quantity           int64     `json:"quantity"`
		DiscountPercentage int64     `json:"discount_percentage"`
		ValidUntil         time.Time `json:"valid_until"`
		IsActive           bool      `json:"is_active"`
	}

	snap := func(c model.Coupon) string {
		if c.ID == 0 {
			// 新規作成のbeforeは空
			return "{}"
		}
		b, _ := json.Marshal(couponSnapshot{
			Name:               c.Name,
			Quantity:           c.Quantity,
			DiscountPercentage: c.DiscountPercentage,
			ValidUntil:         c.ValidUntil,
			IsActive:           c.IsActive,
		})
		return string(b)
	}

	err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionUpdateCoupon,
		ResourceType: model.AuditResourceCoupon,
		ResourceID:   couponID,
		BeforeJSON:   snap(before),
		AfterJSON:    snap(after),
	})
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "failed to write audit log")
	}
	return nil
}
