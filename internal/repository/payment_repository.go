package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (model.Payment, error)
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByChargeID(ctx context.Context, chargeID string) (model.Payment, error)

	// fromのときだけtoへ更新する条件付き遷移。
	// 更新できなければ false（重複配送のwebhookはここでno-opになる）。
	TransitionStatus(ctx context.Context, chargeID string, from, to model.PaymentStatus, paidAt *time.Time) (bool, error)

	// 再決済成功時などpayment IDで直接更新する。
	UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus, paidAt *time.Time) error

	// 期限切れ照合の対象（pendingかつexpires_at超過）。
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Payment, error)
}
