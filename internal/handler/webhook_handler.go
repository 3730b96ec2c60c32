package handler

import (
	"context"
	"net/http"

	"storefront/internal/metrics"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type chargeEventHandler interface {
	HandleChargeEvent(ctx context.Context, eventID, chargeID, providerStatus string) (usecase.WebhookResult, error)
}

// プロバイダからのwebhook受け口。認証はかけない（プロバイダが叩く）。
type WebhookHandler struct {
	uc chargeEventHandler
	m  *metrics.CheckoutMetrics
}

func NewWebhookHandler(uc chargeEventHandler, m *metrics.CheckoutMetrics) *WebhookHandler {
	return &WebhookHandler{uc: uc, m: m}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/omise", h.omise)
}

// プロバイダのイベント形式。charge本体はdataに入っている。
type omiseWebhookRequest struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

func (h *WebhookHandler) omise(c echo.Context) error {
	var req omiseWebhookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//charge関連以外のイベントは受領だけして流す
	if !isChargeEventKey(req.Key) {
		h.count(req.Key, "skipped")
		return c.JSON(http.StatusOK, SuccessResponse{Message: "event not processed"})
	}

	result, err := h.uc.HandleChargeEvent(c.Request().Context(), req.ID, req.Data.ID, req.Data.Status)
	if err != nil {
		h.count(req.Key, "error")
		return writeError(c, err)
	}

	outcome := "noop"
	if result.Processed {
		outcome = "processed"
	}
	h.count(req.Key, outcome)

	return c.JSON(http.StatusOK, map[string]any{
		"message":   "event processed",
		"paymentId": result.PaymentID,
	})
}

func isChargeEventKey(key string) bool {
	switch key {
	case "charge.create", "charge.complete", "charge.update", "charge.failed":
		return true
	}
	return false
}

func (h *WebhookHandler) count(key, outcome string) {
	if h.m == nil {
		return
	}
	h.m.WebhookEvents.WithLabelValues(key, outcome).Inc()
}
