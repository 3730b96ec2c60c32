package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

//middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

// /payments の決済API
type PaymentHandler struct {
	checkout *usecase.CheckoutUsecase
	payments *usecase.PaymentUsecase
	m        *metrics.CheckoutMetrics
}

func NewPaymentHandler(checkout *usecase.CheckoutUsecase, payments *usecase.PaymentUsecase, m *metrics.CheckoutMetrics) *PaymentHandler {
	return &PaymentHandler{checkout: checkout, payments: payments, m: m}
}

type CreditCardRequest struct {
	CustomerID string `json:"customer_id"`
	CardID     string `json:"card_id"`
	AddressID  int64  `json:"address_id"`
	CouponName string `json:"coupon_name"`
}

type PromptPayRequest struct {
	Type       string `json:"type"`
	Email      string `json:"email"`
	AddressID  int64  `json:"address_id"`
	CouponName string `json:"coupon_name"`
}

type RepayCreditCardRequest struct {
	OrderID    int64  `json:"order_id"`
	CustomerID string `json:"customer_id"`
	CardID     string `json:"card_id"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("/credit-card", h.creditCard)
	g.POST("/prompt-pay", h.promptPay)
	g.POST("/repay-with-credit-card", h.repayWithCreditCard)
	g.GET("/:id", h.detail)
	g.GET("/:id/qr", h.qr)
}

func (h *PaymentHandler) creditCard(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CreditCardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.CustomerID == "" || req.CardID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "customer_id and card_id are required"})
	}

	started := time.Now()
	out, err := h.checkout.CreditCard(c.Request().Context(), userID, usecase.CreditCardCheckoutInput{
		CustomerID: req.CustomerID,
		CardID:     req.CardID,
		AddressID:  req.AddressID,
		CouponName: req.CouponName,
	})
	h.observe("credit_card", started, err)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *PaymentHandler) promptPay(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PromptPayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Type == "" {
		req.Type = "promptpay"
	}

	started := time.Now()
	out, err := h.checkout.PromptPay(c.Request().Context(), userID, usecase.PromptPayCheckoutInput{
		SourceType: req.Type,
		Email:      req.Email,
		AddressID:  req.AddressID,
		CouponName: req.CouponName,
	})
	h.observe("prompt_pay", started, err)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *PaymentHandler) repayWithCreditCard(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req RepayCreditCardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.CustomerID == "" || req.CardID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "customer_id and card_id are required"})
	}

	started := time.Now()
	out, err := h.checkout.RepayCreditCard(c.Request().Context(), userID, usecase.RepayCreditCardInput{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		CardID:     req.CardID,
	})
	h.observe("repay_credit_card", started, err)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.payments.GetPayment(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) qr(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	png, err := h.payments.GetPaymentQR(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *PaymentHandler) observe(method string, started time.Time, err error) {
	if h.m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	h.m.Checkouts.WithLabelValues(method, outcome).Inc()
	h.m.LatencyMS.WithLabelValues(method).Observe(float64(time.Since(started).Milliseconds()))
}
