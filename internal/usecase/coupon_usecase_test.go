package usecase

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newCouponUsecaseMocks() (*CouponUsecase, *TxManagerMock, *CouponRepoMock, *AuditLogRepoMock) {
	coupons := new(CouponRepoMock)
	audit := new(AuditLogRepoMock)
	repos := &TxReposMock{
		coupons:   coupons,
		auditLogs: audit,
	}
	tx := &TxManagerMock{Repos: repos}
	tx.On("WithinTx", mock.Anything).Return(nil)
	return NewCouponUsecase(tx), tx, coupons, audit
}

func TestCouponAdmin_Create_WritesAuditLog(t *testing.T) {
	uc, _, coupons, audit := newCouponUsecaseMocks()

	validUntil := time.Now().Add(24 * time.Hour)
	coupons.On("Create", mock.Anything, mock.MatchedBy(func(c model.Coupon) bool {
		return c.Name == "SUMMER10" && c.DiscountPercentage == 10 && c.IsActive
	})).Return(model.Coupon{ID: 5, Name: "SUMMER10", Quantity: 100, DiscountPercentage: 10, ValidUntil: validUntil, IsActive: true}, nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateCoupon &&
			l.ResourceType == model.AuditResourceCoupon &&
			l.ResourceID == 5 &&
			l.ActorUserID == 9 &&
			l.BeforeJSON == "{}"
	})).Return(nil)

	created, err := uc.Create(context.Background(), 9, CreateCouponInput{
		Name:               "SUMMER10",
		Category:           "shoes",
		Quantity:           100,
		DiscountPercentage: 10,
		ValidUntil:         validUntil,
		IsActive:           true,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(5), created.ID)

	coupons.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestCouponAdmin_Create_DuplicateName(t *testing.T) {
	uc, _, coupons, _ := newCouponUsecaseMocks()

	coupons.On("Create", mock.Anything, mock.Anything).Return(model.Coupon{}, repo.ErrDuplicate)

	_, err := uc.Create(context.Background(), 9, CreateCouponInput{
		Name:               "SUMMER10",
		Quantity:           100,
		DiscountPercentage: 10,
		ValidUntil:         time.Now().Add(time.Hour),
		IsActive:           true,
	})
	assertErrContains(t, err, "already exists")
	assertStatus(t, err, 409)
}

func TestCouponAdmin_Create_InvalidDiscount(t *testing.T) {
	uc, tx, _, _ := newCouponUsecaseMocks()

	_, err := uc.Create(context.Background(), 9, CreateCouponInput{
		Name:               "BROKEN",
		Quantity:           10,
		DiscountPercentage: 120,
		ValidUntil:         time.Now().Add(time.Hour),
		IsActive:           true,
	})
	assertStatus(t, err, 400)

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestCouponAdmin_Create_MissingName(t *testing.T) {
	uc, _, _, _ := newCouponUsecaseMocks()

	_, err := uc.Create(context.Background(), 9, CreateCouponInput{
		Quantity:           10,
		DiscountPercentage: 10,
		ValidUntil:         time.Now().Add(time.Hour),
	})
	assertErrContains(t, err, "name is required")
}

func TestCouponAdmin_Update_NotFound(t *testing.T) {
	uc, _, coupons, _ := newCouponUsecaseMocks()

	coupons.On("FindByName", mock.Anything, "GHOST").Return(model.Coupon{}, repo.ErrNotFound)

	_, err := uc.Update(context.Background(), 9, "GHOST", UpdateCouponInput{})
	assertErrContains(t, err, "coupon not found")
	assertStatus(t, err, 404)
}

func TestCouponAdmin_Update_Deactivate(t *testing.T) {
	uc, _, coupons, audit := newCouponUsecaseMocks()

	validUntil := time.Now().Add(24 * time.Hour)
	existing := model.Coupon{ID: 5, Name: "SUMMER10", Quantity: 100, DiscountPercentage: 10, ValidUntil: validUntil, IsActive: true}
	coupons.On("FindByName", mock.Anything, "SUMMER10").Return(existing, nil)
	// 無効化（ゼロ値のfalse）が落ちずにレポジトリへ届くこと
	coupons.On("Update", mock.Anything, mock.MatchedBy(func(c model.Coupon) bool {
		return c.ID == 5 && !c.IsActive && c.Quantity == 100
	})).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateCoupon && l.ResourceID == 5
	})).Return(nil)

	inactive := false
	updated, err := uc.Update(context.Background(), 9, "SUMMER10", UpdateCouponInput{IsActive: &inactive})
	assert.NoError(t, err)
	assert.False(t, updated.IsActive)

	coupons.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestCouponAdmin_Update_InvalidDiscountAfterApply(t *testing.T) {
	uc, _, coupons, _ := newCouponUsecaseMocks()

	coupons.On("FindByName", mock.Anything, "SUMMER10").
		Return(model.Coupon{ID: 5, Name: "SUMMER10", Quantity: 100, DiscountPercentage: 10, ValidUntil: time.Now().Add(time.Hour), IsActive: true}, nil)

	zero := int64(0)
	_, err := uc.Update(context.Background(), 9, "SUMMER10", UpdateCouponInput{DiscountPercentage: &zero})
	assertErrContains(t, err, "between 1 and 100")

	coupons.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
