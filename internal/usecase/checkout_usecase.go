package usecase

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/provider/omise"
	repo "storefront/internal/repository"
)

// 非同期決済（QRなど）のプロバイダ側最低金額（最小通貨単位）。
const minAsyncChargeAmount = 2000

// PaymentProvider は外部決済ゲートウェイへの窓口。
// 起動時に生成した実体を注入する。
type PaymentProvider interface {
	CreateCharge(ctx context.Context, req omise.ChargeRequest) (omise.Charge, error)
	CreateSource(ctx context.Context, req omise.SourceRequest) (omise.Source, error)
	RetrieveCharge(ctx context.Context, chargeID string) (omise.Charge, error)
}

// EventPublisher は確定後の通知イベント送信。失敗しても決済は成立済み。
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload any) error
}

// CheckoutUsecase は決済の一連の流れをまとめる。
// スナップショット→クーポン→charge→在庫引き当て→payment→order→カート削除
// を1つのTxで行う。外部のchargeだけはロールバックできないので、
// 失敗時はwebhook照合（webhook_usecase）で辻褄を合わせる。
type CheckoutUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
	provider  PaymentProvider
	publisher EventPublisher
	returnURI string
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	addresses repo.AddressRepository,
	provider PaymentProvider,
	publisher EventPublisher,
	returnURI string,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		addresses: addresses,
		provider:  provider,
		publisher: publisher,
		returnURI: returnURI,
	}
}

type CreditCardCheckoutInput struct {
	CustomerID string
	CardID     string
	AddressID  int64
	CouponName string
}

type PromptPayCheckoutInput struct {
	SourceType string
	Email      string
	AddressID  int64
	CouponName string
}

type RepayCreditCardInput struct {
	OrderID    int64
	CustomerID string
	CardID     string
}

type CheckoutOutput struct {
	OrderID   int64             `json:"order_id"`
	PaymentID int64             `json:"payment_id"`
	ChargeID  string            `json:"charge_id"`
	Amount    int64             `json:"amount"`
	Status    model.OrderStatus `json:"status"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	ImageURI  string            `json:"image,omitempty"`
	ReturnURI string            `json:"return_uri,omitempty"`
}

// CreditCard は同期のカード決済。プロバイダの応答がその場で返るので、
// successful なら即 paid、それ以外は unpaid で注文を作る。
func (u *CheckoutUsecase) CreditCard(ctx context.Context, userID int64, in CreditCardCheckoutInput) (CheckoutOutput, error) {
	if err := u.validateAddress(ctx, userID, in.AddressID); err != nil {
		return CheckoutOutput{}, err
	}

	var out CheckoutOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		lineItems, cartID, err := snapshotCart(ctx, r, userID)
		if err != nil {
			return err
		}

		totalAmount := lineItemsTotal(lineItems)

		if in.CouponName != "" {
			totalAmount, _, err = applyCoupon(ctx, r, in.CouponName, userID, lineItems, totalAmount)
			if err != nil {
				return err
			}
		}

		charge, err := u.provider.CreateCharge(ctx, omise.ChargeRequest{
			Amount:     totalAmount,
			Currency:   "thb",
			CustomerID: in.CustomerID,
			CardID:     in.CardID,
		})
		if err != nil {
			return providerError(err)
		}

		// 在庫引き当てはchargeが受理されてから。逆順にはしない。
		if err := reserveLineItems(ctx, r, lineItems); err != nil {
			return err
		}

		orderStatus := model.OrderStatusUnpaid
		paymentStatus := model.PaymentStatusPending
		var paidAt *time.Time
		if charge.Status == omise.ChargeStatusSuccessful {
			orderStatus = model.OrderStatusPaid
			paymentStatus = model.PaymentStatusPaid
			now := time.Now()
			paidAt = &now
			if charge.PaidAt != nil {
				paidAt = charge.PaidAt
			}
		}

		payment, err := r.Payments().Create(ctx, model.Payment{
			ChargeID:      charge.ID,
			UserID:        userID,
			Amount:        charge.Amount,
			Status:        paymentStatus,
			PaymentMethod: model.PaymentMethodCreditCard,
			ExpiresAt:     charge.ExpiresAt,
			PaidAt:        paidAt,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		orderID, err := writeOrder(ctx, r, userID, payment.ID, in.AddressID, orderStatus, lineItems)
		if err != nil {
			return err
		}

		if err := r.Carts().Destroy(ctx, cartID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "failed to clear cart")
		}

		out = CheckoutOutput{
			OrderID:   orderID,
			PaymentID: payment.ID,
			ChargeID:  charge.ID,
			Amount:    charge.Amount,
			Status:    orderStatus,
			ExpiresAt: charge.ExpiresAt,
			ReturnURI: charge.ReturnURI,
		}
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	u.publishOrderCreated(ctx, userID, out)
	return out, nil
}

// PromptPay は非同期のQR決済。chargeはpendingで返り、
// 最終ステータスは後からwebhookで届く。在庫はこの時点で
// 楽観的に引き当て、失敗webhookで戻す。
func (u *CheckoutUsecase) PromptPay(ctx context.Context, userID int64, in PromptPayCheckoutInput) (CheckoutOutput, error) {
	if err := u.validateAddress(ctx, userID, in.AddressID); err != nil {
		return CheckoutOutput{}, err
	}

	var out CheckoutOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		lineItems, cartID, err := snapshotCart(ctx, r, userID)
		if err != nil {
			return err
		}

		totalAmount := lineItemsTotal(lineItems)

		if in.CouponName != "" {
			totalAmount, _, err = applyCoupon(ctx, r, in.CouponName, userID, lineItems, totalAmount)
			if err != nil {
				return err
			}
		}

		// プロバイダの最低金額は割引後の金額で判定する
		if totalAmount < minAsyncChargeAmount {
			return NewHTTPError(http.StatusBadRequest, "amount must be greater than or equal to ฿20")
		}

		source, err := u.provider.CreateSource(ctx, omise.SourceRequest{
			Type:     in.SourceType,
			Amount:   totalAmount,
			Currency: "thb",
			Email:    in.Email,
		})
		if err != nil {
			return providerError(err)
		}

		charge, err := u.provider.CreateCharge(ctx, omise.ChargeRequest{
			Amount:    totalAmount,
			Currency:  "thb",
			SourceID:  source.ID,
			ReturnURI: u.returnURI,
		})
		if err != nil {
			return providerError(err)
		}

		if err := reserveLineItems(ctx, r, lineItems); err != nil {
			return err
		}

		payment, err := r.Payments().Create(ctx, model.Payment{
			ChargeID:      charge.ID,
			UserID:        userID,
			Amount:        charge.Amount,
			Status:        model.PaymentStatusPending,
			PaymentMethod: model.PaymentMethodPromptPay,
			ExpiresAt:     charge.ExpiresAt,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		orderID, err := writeOrder(ctx, r, userID, payment.ID, in.AddressID, model.OrderStatusUnpaid, lineItems)
		if err != nil {
			return err
		}

		if err := r.Carts().Destroy(ctx, cartID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "failed to clear cart")
		}

		out = CheckoutOutput{
			OrderID:   orderID,
			PaymentID: payment.ID,
			ChargeID:  charge.ID,
			Amount:    charge.Amount,
			Status:    model.OrderStatusUnpaid,
			ExpiresAt: charge.ExpiresAt,
			ImageURI:  charge.ScannableImageURI(),
			ReturnURI: charge.ReturnURI,
		}
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	u.publishOrderCreated(ctx, userID, out)
	return out, nil
}

// RepayCreditCard は既存注文への再決済。金額は注文明細の
// price_at_purchase（凍結済み）から計算する。今の商品価格は見ない。
// 在庫は元の注文で引き当て済みなので触らない。
func (u *CheckoutUsecase) RepayCreditCard(ctx context.Context, userID int64, in RepayCreditCardInput) (CheckoutOutput, error) {
	if in.OrderID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	var out CheckoutOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := r.Orders().FindByID(ctx, in.OrderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if order.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if order.Status != model.OrderStatusUnpaid {
			return NewHTTPError(http.StatusBadRequest, "order is not payable")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		var totalAmount int64
		for _, it := range items {
			totalAmount += it.PriceAtPurchase * 100 * it.Quantity
		}

		charge, err := u.provider.CreateCharge(ctx, omise.ChargeRequest{
			Amount:     totalAmount,
			Currency:   "thb",
			CustomerID: in.CustomerID,
			CardID:     in.CardID,
		})
		if err != nil {
			return providerError(err)
		}

		if charge.Status == omise.ChargeStatusFailed {
			return NewHTTPError(http.StatusBadRequest, charge.FailureMessage)
		}

		if charge.Status == omise.ChargeStatusSuccessful {
			now := time.Now()
			paidAt := &now
			if charge.PaidAt != nil {
				paidAt = charge.PaidAt
			}
			if err := r.Payments().UpdateStatus(ctx, order.PaymentID, model.PaymentStatusPaid, paidAt); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err := r.Orders().UpdateStatus(ctx, order.ID, model.OrderStatusPaid); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		status := model.OrderStatusUnpaid
		if charge.Status == omise.ChargeStatusSuccessful {
			status = model.OrderStatusPaid
		}

		out = CheckoutOutput{
			OrderID:   order.ID,
			PaymentID: order.PaymentID,
			ChargeID:  charge.ID,
			Amount:    charge.Amount,
			Status:    status,
			ReturnURI: charge.ReturnURI,
		}
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	return out, nil
}

func (u *CheckoutUsecase) validateAddress(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}

	owned, err := u.addresses.IsOwnedByUser(ctx, addressID, userID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !owned {
		return NewHTTPError(http.StatusNotFound, "address not found")
	}
	return nil
}

// reserveLineItems は明細ごとに在庫を条件付きで減らす。
// スナップショット後に他の決済が先行した場合はここで落ちてTxごと巻き戻る。
func reserveLineItems(ctx context.Context, r repo.TxRepos, items []CartLineItem) error {
	for _, it := range items {
		err := r.Inventory().Reserve(ctx, it.ProductID, it.Quantity)
		if err == repo.ErrInsufficientStock {
			return NewHTTPError(http.StatusConflict,
				"product \""+it.Name+"\" is out of stock")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}
	return nil
}

// writeOrder は注文と明細を同じTxで作る。
// 書けた明細数が合わないときは部分書き込みとみなして中断する。
func writeOrder(ctx context.Context, r repo.TxRepos, userID, paymentID, addressID int64, status model.OrderStatus, items []CartLineItem) (int64, error) {
	orderID, err := r.Orders().Create(ctx, model.Order{
		UserID:    userID,
		PaymentID: paymentID,
		AddressID: addressID,
		Status:    status,
	})
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	orderItems := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, model.OrderItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.UnitPrice,
		})
	}

	written, err := r.OrderItems().CreateBulk(ctx, orderID, orderItems)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if written != int64(len(orderItems)) {
		return 0, NewHTTPError(http.StatusInternalServerError, "failed to create all order items")
	}

	return orderID, nil
}

func providerError(err error) error {
	if apiErr, ok := err.(*omise.APIError); ok {
		return NewHTTPError(http.StatusBadGateway, "payment provider error: "+apiErr.Message)
	}
	return NewHTTPError(http.StatusBadGateway, "payment provider error: "+err.Error())
}

func (u *CheckoutUsecase) publishOrderCreated(ctx context.Context, userID int64, out CheckoutOutput) {
	if u.publisher == nil {
		return
	}
	err := u.publisher.Publish(ctx, events.TopicOrderCreated, strconv.FormatInt(out.OrderID, 10), events.OrderCreatedEvent{
		OrderID:   out.OrderID,
		UserID:    userID,
		PaymentID: out.PaymentID,
		Amount:    out.Amount,
		Status:    string(out.Status),
	})
	if err != nil {
		logging.Log(logging.Fields{
			Component: "checkout",
			UserID:    userID,
			OrderID:   out.OrderID,
			Step:      "publish_order_created",
			Status:    "error",
			Message:   err.Error(),
		})
	}
}
