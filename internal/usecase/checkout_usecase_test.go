package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/provider/omise"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Helper: error contains（HTTPErrorの実装詳細に依存しない）
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertStatus(t *testing.T, err error, wantStatus int) {
	t.Helper()
	he, ok := AsHTTPError(err)
	if assert.True(t, ok, "want HTTPError, got %v", err) {
		assert.Equal(t, wantStatus, he.Status)
	}
}

// =====================
// Fixtures
// =====================

func newCheckoutMocks() (*TxManagerMock, *TxReposMock, *AddressRepoMock, *ProviderMock) {
	repos := &TxReposMock{
		orders:     new(OrderRepoMock),
		orderItems: new(OrderItemRepoMock),
		carts:      new(CartRepoMock),
		cartItems:  new(CartItemRepoMock),
		inventory:  new(InventoryRepoMock),
		products:   new(ProductRepoMock),
		coupons:    new(CouponRepoMock),
		payments:   new(PaymentRepoMock),
		auditLogs:  new(AuditLogRepoMock),
	}
	tx := &TxManagerMock{Repos: repos}
	tx.On("WithinTx", mock.Anything).Return(nil)

	addresses := new(AddressRepoMock)
	provider := new(ProviderMock)

	return tx, repos, addresses, provider
}

func stubCartWithOneProduct(repos *TxReposMock, userID int64) {
	repos.carts.(*CartRepoMock).On("FindByUserID", mock.Anything, userID).
		Return(model.Cart{ID: 5, UserID: userID}, nil)
	repos.cartItems.(*CartItemRepoMock).On("ListByCartID", mock.Anything, int64(5)).
		Return([]model.CartItem{{ID: 1, CartID: 5, UserID: userID, ProductID: 7, Quantity: 2}}, nil)
	repos.products.(*ProductRepoMock).On("FindByID", mock.Anything, int64(7)).
		Return(model.Product{ID: 7, Name: "shirt", Category: "clothes", Price: 500, Amount: 10, IsActive: true}, nil)
}

// =====================
// CreditCard tests
// =====================

func TestCheckout_CreditCard_EmptyCart(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	repos.carts.(*CartRepoMock).On("FindByUserID", mock.Anything, int64(1)).
		Return(model.Cart{}, repo.ErrNotFound)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assertErrContains(t, err, "cart is empty")
	assertStatus(t, err, 400)
}

func TestCheckout_CreditCard_AddressNotOwned(t *testing.T) {
	tx, _, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(false, nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assertErrContains(t, err, "address not found")
	assertStatus(t, err, 404)
}

func TestCheckout_CreditCard_StockExceededAtSnapshot(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	repos.carts.(*CartRepoMock).On("FindByUserID", mock.Anything, int64(1)).
		Return(model.Cart{ID: 5, UserID: 1}, nil)
	repos.cartItems.(*CartItemRepoMock).On("ListByCartID", mock.Anything, int64(5)).
		Return([]model.CartItem{{ID: 1, CartID: 5, ProductID: 7, Quantity: 99}}, nil)
	repos.products.(*ProductRepoMock).On("FindByID", mock.Anything, int64(7)).
		Return(model.Product{ID: 7, Name: "shirt", Price: 500, Amount: 3}, nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assertErrContains(t, err, "exceeds available stock")
	provider.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
}

func TestCheckout_CreditCard_Success(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()
	publisher := new(PublisherMock)

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	stubCartWithOneProduct(repos, 1)

	// 500円×2個×100 = 100000 最小通貨単位
	provider.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req omise.ChargeRequest) bool {
		return req.Amount == 100000 && req.CustomerID == "cust_1" && req.CardID == "card_1"
	})).Return(omise.Charge{ID: "chrg_1", Status: omise.ChargeStatusSuccessful, Amount: 100000}, nil)

	repos.inventory.(*InventoryRepoMock).On("Reserve", mock.Anything, int64(7), int64(2)).Return(nil)
	repos.payments.(*PaymentRepoMock).On("Create", mock.Anything, mock.MatchedBy(func(p model.Payment) bool {
		return p.ChargeID == "chrg_1" && p.Status == model.PaymentStatusPaid && p.PaymentMethod == model.PaymentMethodCreditCard
	})).Return(model.Payment{ID: 20, ChargeID: "chrg_1", Status: model.PaymentStatusPaid}, nil)
	repos.orders.(*OrderRepoMock).On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusPaid && o.PaymentID == 20 && o.UserID == 1
	})).Return(int64(30), nil)
	repos.orderItems.(*OrderItemRepoMock).On("CreateBulk", mock.Anything, int64(30), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 && items[0].PriceAtPurchase == 500 && items[0].Quantity == 2
	})).Return(int64(1), nil)
	repos.carts.(*CartRepoMock).On("Destroy", mock.Anything, int64(5)).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, publisher, "")

	out, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(30), out.OrderID)
	assert.Equal(t, int64(20), out.PaymentID)
	assert.Equal(t, "chrg_1", out.ChargeID)
	assert.Equal(t, model.OrderStatusPaid, out.Status)

	repos.carts.(*CartRepoMock).AssertExpectations(t)
	repos.payments.(*PaymentRepoMock).AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCheckout_CreditCard_CouponDiscountsChargeAmount(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	stubCartWithOneProduct(repos, 1)

	repos.coupons.(*CouponRepoMock).On("FindByName", mock.Anything, "SAVE15").
		Return(model.Coupon{
			ID: 9, Name: "SAVE15", Category: "clothes", Quantity: 5,
			DiscountPercentage: 15, ValidUntil: time.Now().Add(time.Hour), IsActive: true,
		}, nil)
	repos.coupons.(*CouponRepoMock).On("DecrementQuantityIfAvailable", mock.Anything, int64(9)).Return(true, nil)

	// 100000 × 0.85 = 85000
	provider.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req omise.ChargeRequest) bool {
		return req.Amount == 85000
	})).Return(omise.Charge{ID: "chrg_2", Status: omise.ChargeStatusSuccessful, Amount: 85000}, nil)

	repos.inventory.(*InventoryRepoMock).On("Reserve", mock.Anything, int64(7), int64(2)).Return(nil)
	repos.payments.(*PaymentRepoMock).On("Create", mock.Anything, mock.Anything).
		Return(model.Payment{ID: 21}, nil)
	repos.orders.(*OrderRepoMock).On("Create", mock.Anything, mock.Anything).Return(int64(31), nil)
	repos.orderItems.(*OrderItemRepoMock).On("CreateBulk", mock.Anything, int64(31), mock.Anything).Return(int64(1), nil)
	repos.carts.(*CartRepoMock).On("Destroy", mock.Anything, int64(5)).Return(nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3, CouponName: "SAVE15",
	})
	assert.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestCheckout_CreditCard_ProviderErrorAbortsBeforeReserve(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	stubCartWithOneProduct(repos, 1)

	provider.On("CreateCharge", mock.Anything, mock.Anything).
		Return(omise.Charge{}, &omise.APIError{StatusCode: 400, Code: "invalid_card", Message: "invalid card"})

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assertErrContains(t, err, "invalid card")
	assertStatus(t, err, 502)
	repos.inventory.(*InventoryRepoMock).AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_CreditCard_InsufficientStockAtReserve(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	stubCartWithOneProduct(repos, 1)

	provider.On("CreateCharge", mock.Anything, mock.Anything).
		Return(omise.Charge{ID: "chrg_3", Status: omise.ChargeStatusSuccessful, Amount: 100000}, nil)
	repos.inventory.(*InventoryRepoMock).On("Reserve", mock.Anything, int64(7), int64(2)).
		Return(repo.ErrInsufficientStock)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assertErrContains(t, err, "out of stock")
	assertStatus(t, err, 409)
	repos.payments.(*PaymentRepoMock).AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_CreditCard_PartialOrderItemsAborts(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	stubCartWithOneProduct(repos, 1)

	provider.On("CreateCharge", mock.Anything, mock.Anything).
		Return(omise.Charge{ID: "chrg_4", Status: omise.ChargeStatusSuccessful, Amount: 100000}, nil)
	repos.inventory.(*InventoryRepoMock).On("Reserve", mock.Anything, int64(7), int64(2)).Return(nil)
	repos.payments.(*PaymentRepoMock).On("Create", mock.Anything, mock.Anything).
		Return(model.Payment{ID: 22}, nil)
	repos.orders.(*OrderRepoMock).On("Create", mock.Anything, mock.Anything).Return(int64(32), nil)

	// 1件のはずが0件しか書けなかった
	repos.orderItems.(*OrderItemRepoMock).On("CreateBulk", mock.Anything, int64(32), mock.Anything).Return(int64(0), nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.CreditCard(context.Background(), 1, CreditCardCheckoutInput{
		CustomerID: "cust_1", CardID: "card_1", AddressID: 3,
	})
	assertErrContains(t, err, "failed to create all order items")
	repos.carts.(*CartRepoMock).AssertNotCalled(t, "Destroy", mock.Anything, mock.Anything)
}

// =====================
// PromptPay tests
// =====================

func TestCheckout_PromptPay_BelowMinimumAmount(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	repos.carts.(*CartRepoMock).On("FindByUserID", mock.Anything, int64(1)).
		Return(model.Cart{ID: 5, UserID: 1}, nil)
	repos.cartItems.(*CartItemRepoMock).On("ListByCartID", mock.Anything, int64(5)).
		Return([]model.CartItem{{ID: 1, CartID: 5, ProductID: 7, Quantity: 1}}, nil)
	//10円×1個×100 = 1000 < 2000
	repos.products.(*ProductRepoMock).On("FindByID", mock.Anything, int64(7)).
		Return(model.Product{ID: 7, Name: "sticker", Price: 10, Amount: 10}, nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "https://example.com/done")

	_, err := uc.PromptPay(context.Background(), 1, PromptPayCheckoutInput{
		SourceType: "promptpay", AddressID: 3,
	})
	assertStatus(t, err, 400)
	provider.AssertNotCalled(t, "CreateSource", mock.Anything, mock.Anything)
}

func TestCheckout_PromptPay_Success_PendingOrder(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	addresses.On("IsOwnedByUser", mock.Anything, int64(3), int64(1)).Return(true, nil)
	stubCartWithOneProduct(repos, 1)

	expires := time.Now().Add(24 * time.Hour)
	charge := omise.Charge{
		ID: "chrg_qr", Status: omise.ChargeStatusPending, Amount: 100000,
		ExpiresAt: &expires, ReturnURI: "https://example.com/done",
	}
	charge.Source = &omise.Source{ID: "src_1"}
	charge.Source.ScannableCode = &omise.ScannableCode{}
	charge.Source.ScannableCode.Image.DownloadURI = "https://cdn.example.com/qr.png"

	provider.On("CreateSource", mock.Anything, mock.MatchedBy(func(req omise.SourceRequest) bool {
		return req.Type == "promptpay" && req.Amount == 100000
	})).Return(omise.Source{ID: "src_1"}, nil)
	provider.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req omise.ChargeRequest) bool {
		return req.SourceID == "src_1" && req.ReturnURI == "https://example.com/done"
	})).Return(charge, nil)

	repos.inventory.(*InventoryRepoMock).On("Reserve", mock.Anything, int64(7), int64(2)).Return(nil)
	repos.payments.(*PaymentRepoMock).On("Create", mock.Anything, mock.MatchedBy(func(p model.Payment) bool {
		return p.Status == model.PaymentStatusPending && p.PaymentMethod == model.PaymentMethodPromptPay
	})).Return(model.Payment{ID: 25}, nil)
	repos.orders.(*OrderRepoMock).On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusUnpaid
	})).Return(int64(35), nil)
	repos.orderItems.(*OrderItemRepoMock).On("CreateBulk", mock.Anything, int64(35), mock.Anything).Return(int64(1), nil)
	repos.carts.(*CartRepoMock).On("Destroy", mock.Anything, int64(5)).Return(nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "https://example.com/done")

	out, err := uc.PromptPay(context.Background(), 1, PromptPayCheckoutInput{
		SourceType: "promptpay", AddressID: 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusUnpaid, out.Status)
	assert.Equal(t, "https://cdn.example.com/qr.png", out.ImageURI)
	assert.NotNil(t, out.ExpiresAt)
}

// =====================
// Repay tests
// =====================

func TestCheckout_Repay_OrderNotOwned(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	repos.orders.(*OrderRepoMock).On("FindByID", mock.Anything, int64(30)).
		Return(model.Order{ID: 30, UserID: 99, Status: model.OrderStatusUnpaid}, nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.RepayCreditCard(context.Background(), 1, RepayCreditCardInput{
		OrderID: 30, CustomerID: "cust_1", CardID: "card_1",
	})
	assertErrContains(t, err, "order not found")
	assertStatus(t, err, 404)
}

func TestCheckout_Repay_OrderNotUnpaid(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	repos.orders.(*OrderRepoMock).On("FindByID", mock.Anything, int64(30)).
		Return(model.Order{ID: 30, UserID: 1, Status: model.OrderStatusPaid}, nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.RepayCreditCard(context.Background(), 1, RepayCreditCardInput{
		OrderID: 30, CustomerID: "cust_1", CardID: "card_1",
	})
	assertErrContains(t, err, "not payable")
}

func TestCheckout_Repay_UsesFrozenPrices(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	repos.orders.(*OrderRepoMock).On("FindByID", mock.Anything, int64(30)).
		Return(model.Order{ID: 30, UserID: 1, PaymentID: 20, Status: model.OrderStatusUnpaid}, nil)
	// 当時の単価400円×2個。今の商品価格は見ない。
	repos.orderItems.(*OrderItemRepoMock).On("ListByOrderID", mock.Anything, int64(30)).
		Return([]model.OrderItem{{OrderID: 30, ProductID: 7, Quantity: 2, PriceAtPurchase: 400}}, nil)

	provider.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req omise.ChargeRequest) bool {
		return req.Amount == 80000
	})).Return(omise.Charge{ID: "chrg_r", Status: omise.ChargeStatusSuccessful, Amount: 80000}, nil)

	repos.payments.(*PaymentRepoMock).On("UpdateStatus", mock.Anything, int64(20), model.PaymentStatusPaid, mock.Anything).Return(nil)
	repos.orders.(*OrderRepoMock).On("UpdateStatus", mock.Anything, int64(30), model.OrderStatusPaid).Return(nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	out, err := uc.RepayCreditCard(context.Background(), 1, RepayCreditCardInput{
		OrderID: 30, CustomerID: "cust_1", CardID: "card_1",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, out.Status)
	// 在庫は元の注文で引き当て済みなので触らない
	repos.inventory.(*InventoryRepoMock).AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	provider.AssertExpectations(t)
}

func TestCheckout_Repay_FailedChargeReturnsFailureMessage(t *testing.T) {
	tx, repos, addresses, provider := newCheckoutMocks()

	repos.orders.(*OrderRepoMock).On("FindByID", mock.Anything, int64(30)).
		Return(model.Order{ID: 30, UserID: 1, PaymentID: 20, Status: model.OrderStatusUnpaid}, nil)
	repos.orderItems.(*OrderItemRepoMock).On("ListByOrderID", mock.Anything, int64(30)).
		Return([]model.OrderItem{{OrderID: 30, ProductID: 7, Quantity: 1, PriceAtPurchase: 400}}, nil)

	provider.On("CreateCharge", mock.Anything, mock.Anything).
		Return(omise.Charge{ID: "chrg_f", Status: omise.ChargeStatusFailed, FailureMessage: "insufficient funds"}, nil)

	uc := NewCheckoutUsecase(tx, addresses, provider, nil, "")

	_, err := uc.RepayCreditCard(context.Background(), 1, RepayCreditCardInput{
		OrderID: 30, CustomerID: "cust_1", CardID: "card_1",
	})
	assertErrContains(t, err, "insufficient funds")
	assertStatus(t, err, 400)
	repos.payments.(*PaymentRepoMock).AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
