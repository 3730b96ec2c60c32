package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/provider/omise"
	repo "storefront/internal/repository"
)

// WebhookUsecase はプロバイダからのcharge通知をDBへ反映する。
// 通知は重複も順序逆転もあり得る前提で、すべての更新を
// 条件付き遷移（pendingのときだけ）にしている。2回目以降はno-op。
// EventDeduper はイベントIDの既読管理。cache.EventDedupe が本実装。
type EventDeduper interface {
	// MarkProcessed は初見なら記録して true、処理済みなら false。
	MarkProcessed(ctx context.Context, eventID string) bool
	// Forget は記録を取り消す（DB反映に失敗したときの再送用）。
	Forget(ctx context.Context, eventID string)
}

type WebhookUsecase struct {
	tx        repo.TransactionManager
	dedupe    EventDeduper
	provider  PaymentProvider
	publisher EventPublisher
}

func NewWebhookUsecase(
	tx repo.TransactionManager,
	dedupe EventDeduper,
	provider PaymentProvider,
	publisher EventPublisher,
) *WebhookUsecase {
	return &WebhookUsecase{
		tx:        tx,
		dedupe:    dedupe,
		provider:  provider,
		publisher: publisher,
	}
}

type WebhookResult struct {
	PaymentID int64
	Processed bool
}

// HandleChargeEvent は1件のcharge通知を処理する。
// providerStatus はプロバイダ側の語彙（successful/failed/expired/pending）。
func (u *WebhookUsecase) HandleChargeEvent(ctx context.Context, eventID, chargeID, providerStatus string) (WebhookResult, error) {
	if chargeID == "" {
		return WebhookResult{}, NewHTTPError(http.StatusBadRequest, "missing charge id")
	}

	// 高速パス。redisが落ちていても初見扱いで先へ進む（DBが最終防壁）。
	if u.dedupe != nil && !u.dedupe.MarkProcessed(ctx, eventID) {
		logging.Log(logging.Fields{
			Component: "webhook",
			ChargeID:  chargeID,
			EventID:   eventID,
			Step:      "dedupe",
			Status:    "duplicate",
		})
		return WebhookResult{Processed: false}, nil
	}

	var result WebhookResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		payment, err := r.Payments().FindByChargeID(ctx, chargeID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "payment not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		result.PaymentID = payment.ID

		switch providerStatus {
		case omise.ChargeStatusSuccessful:
			return u.markPaid(ctx, r, payment, &result)
		case omise.ChargeStatusFailed, omise.ChargeStatusExpired:
			return u.markCancelled(ctx, r, payment, &result)
		default:
			// pendingなどはまだ確定していないので何もしない
			return nil
		}
	})
	if err != nil {
		// DBに反映できなかったイベントは既読を取り消す。
		// 取り消さないとプロバイダの再送が高速パスで落ちて二度と拾えない。
		if u.dedupe != nil {
			u.dedupe.Forget(ctx, eventID)
		}
		return WebhookResult{}, err
	}

	if result.Processed {
		u.publishPaymentStatus(ctx, chargeID, result.PaymentID, providerStatus)
	}

	logging.Log(logging.Fields{
		Component: "webhook",
		PaymentID: result.PaymentID,
		ChargeID:  chargeID,
		EventID:   eventID,
		Step:      "reconcile",
		Status:    providerStatus,
	})

	return result, nil
}

func (u *WebhookUsecase) markPaid(ctx context.Context, r repo.TxRepos, payment model.Payment, result *WebhookResult) error {
	paidAt := u.resolvePaidAt(ctx, payment.ChargeID)

	moved, err := r.Payments().TransitionStatus(ctx, payment.ChargeID, model.PaymentStatusPending, model.PaymentStatusPaid, &paidAt)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !moved {
		return nil
	}

	if err := r.Orders().UpdateStatusByPaymentID(ctx, payment.ID, model.OrderStatusPaid); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	result.Processed = true
	return nil
}

// markCancelled は失敗・期限切れの取り消し。遷移が実際に起きたとき
// だけ在庫を戻す。二重解放はここの条件で防いでいる。
func (u *WebhookUsecase) markCancelled(ctx context.Context, r repo.TxRepos, payment model.Payment, result *WebhookResult) error {
	moved, err := r.Payments().TransitionStatus(ctx, payment.ChargeID, model.PaymentStatusPending, model.PaymentStatusCancelled, nil)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !moved {
		return nil
	}

	order, err := r.Orders().FindByPaymentID(ctx, payment.ID)
	if err == repo.ErrNotFound {
		// カード同期決済の失敗などで注文が無いケースは支払い取消だけで終わる
		result.Processed = true
		return nil
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := r.Orders().UpdateStatus(ctx, order.ID, model.OrderStatusCancelled); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	for _, it := range items {
		if err := r.Inventory().Release(ctx, it.ProductID, it.Quantity); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "failed to restore stock")
		}
	}

	result.Processed = true
	return nil
}

// resolvePaidAt はプロバイダの記録時刻を優先し、取れなければ受信時刻。
func (u *WebhookUsecase) resolvePaidAt(ctx context.Context, chargeID string) time.Time {
	if u.provider != nil {
		charge, err := u.provider.RetrieveCharge(ctx, chargeID)
		if err == nil && charge.PaidAt != nil {
			return *charge.PaidAt
		}
	}
	return time.Now()
}

func (u *WebhookUsecase) publishPaymentStatus(ctx context.Context, chargeID string, paymentID int64, status string) {
	if u.publisher == nil {
		return
	}
	err := u.publisher.Publish(ctx, events.TopicPaymentStatus, chargeID, events.PaymentStatusEvent{
		ChargeID:  chargeID,
		PaymentID: paymentID,
		Status:    status,
	})
	if err != nil {
		logging.Log(logging.Fields{
			Component: "webhook",
			PaymentID: paymentID,
			ChargeID:  chargeID,
			Step:      "publish_payment_status",
			Status:    "error",
			Message:   err.Error(),
		})
	}
}
