package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	qrcode "github.com/skip2/go-qrcode"
)

type PaymentUsecase struct {
	payments repo.PaymentRepository
	orders   repo.OrderRepository
	provider PaymentProvider
}

func NewPaymentUsecase(
	payments repo.PaymentRepository,
	orders repo.OrderRepository,
	provider PaymentProvider,
) *PaymentUsecase {
	return &PaymentUsecase{payments: payments, orders: orders, provider: provider}
}

type PaymentOutput struct {
	ID             int64               `json:"id"`
	ChargeID       string              `json:"charge_id"`
	Amount         int64               `json:"amount"`
	Status         model.PaymentStatus `json:"status"`
	PaymentMethod  model.PaymentMethod `json:"payment_method"`
	OrderID        int64               `json:"order_id,omitempty"`
	ProviderStatus string              `json:"provider_status,omitempty"`
	AuthorizeURI   string              `json:"authorize_uri,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
}

// GetPayment はDBの支払いに加えてプロバイダ側の現在ステータスも返す。
// プロバイダ照会に失敗してもDBの値だけで応答する。
func (u *PaymentUsecase) GetPayment(ctx context.Context, userID, paymentID int64) (PaymentOutput, error) {
	payment, err := u.mustOwnPayment(ctx, userID, paymentID)
	if err != nil {
		return PaymentOutput{}, err
	}

	out := PaymentOutput{
		ID:            payment.ID,
		ChargeID:      payment.ChargeID,
		Amount:        payment.Amount,
		Status:        payment.Status,
		PaymentMethod: payment.PaymentMethod,
		ExpiresAt:     payment.ExpiresAt,
		PaidAt:        payment.PaidAt,
	}

	if order, err := u.orders.FindByPaymentID(ctx, payment.ID); err == nil {
		out.OrderID = order.ID
	}

	if charge, err := u.provider.RetrieveCharge(ctx, payment.ChargeID); err == nil {
		out.ProviderStatus = charge.Status
		out.AuthorizeURI = charge.AuthorizeURI
	}

	return out, nil
}

// GetPaymentQR はQR決済の支払いURLをPNGのQRコードにして返す。
// 支払い待ち以外（確定済み・取消済み）はQRを出さない。
func (u *PaymentUsecase) GetPaymentQR(ctx context.Context, userID, paymentID int64) ([]byte, error) {
	payment, err := u.mustOwnPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.PaymentMethod != model.PaymentMethodPromptPay {
		return nil, NewHTTPError(http.StatusBadRequest, "payment method does not support qr")
	}
	if payment.Status != model.PaymentStatusPending {
		return nil, NewHTTPError(http.StatusBadRequest, "payment is not pending")
	}

	charge, err := u.provider.RetrieveCharge(ctx, payment.ChargeID)
	if err != nil {
		return nil, providerError(err)
	}
	uri := charge.AuthorizeURI
	if uri == "" {
		uri = charge.ScannableImageURI()
	}
	if uri == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "charge has no payable uri")
	}

	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "failed to encode qr")
	}
	return png, nil
}

func (u *PaymentUsecase) mustOwnPayment(ctx context.Context, userID, paymentID int64) (model.Payment, error) {
	payment, err := u.payments.FindByID(ctx, paymentID)
	if err == repo.ErrNotFound {
		return model.Payment{}, NewHTTPError(http.StatusNotFound, "payment not found")
	}
	if err != nil {
		return model.Payment{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if payment.UserID != userID {
		return model.Payment{}, NewHTTPError(http.StatusNotFound, "payment not found")
	}
	return payment, nil
}
