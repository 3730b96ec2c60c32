package jobs

import (
	"context"
	"time"

	"storefront/internal/logging"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/google/uuid"
)

// ExpirySweeper はwebhookが落ちた・届かなかった場合の保険。
// 期限切れのpending支払いを定期的に拾い、プロバイダへ現況を
// 問い直してwebhookと同じ経路で照合する。
type ExpirySweeper struct {
	payments repo.PaymentRepository
	provider usecase.PaymentProvider
	webhook  *usecase.WebhookUsecase
	interval time.Duration
	batch    int
}

func NewExpirySweeper(
	payments repo.PaymentRepository,
	provider usecase.PaymentProvider,
	webhook *usecase.WebhookUsecase,
	interval time.Duration,
) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		payments: payments,
		provider: provider,
		webhook:  webhook,
		interval: interval,
		batch:    50,
	}
}

// Run はctxが閉じるまで回り続ける。goroutineで起動する。
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	payments, err := s.payments.ListExpiredPending(ctx, time.Now(), s.batch)
	if err != nil {
		logging.Log(logging.Fields{
			Component: "sweeper",
			Step:      "list_expired",
			Status:    "error",
			Message:   err.Error(),
		})
		return
	}

	for _, p := range payments {
		charge, err := s.provider.RetrieveCharge(ctx, p.ChargeID)
		if err != nil {
			logging.Log(logging.Fields{
				Component: "sweeper",
				PaymentID: p.ID,
				ChargeID:  p.ChargeID,
				Step:      "retrieve_charge",
				Status:    "error",
				Message:   err.Error(),
			})
			continue
		}

		// webhookと同じ照合経路に流す。条件付き遷移なので
		// 本物のwebhookと競合しても片方だけが勝つ。
		_, err = s.webhook.HandleChargeEvent(ctx, "sweep-"+uuid.NewString(), p.ChargeID, charge.Status)
		if err != nil {
			logging.Log(logging.Fields{
				Component: "sweeper",
				PaymentID: p.ID,
				ChargeID:  p.ChargeID,
				Step:      "reconcile",
				Status:    "error",
				Message:   err.Error(),
			})
		}
	}
}
