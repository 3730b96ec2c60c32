package handler

import (
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者用のクーポンAPI
type AdminCouponHandler struct {
	uc *usecase.CouponUsecase
}

func NewAdminCouponHandler(uc *usecase.CouponUsecase) *AdminCouponHandler {
	return &AdminCouponHandler{uc: uc}
}

func (h *AdminCouponHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/admin/coupons")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.AdminRoleGuard())

	g.POST("", h.create)
	g.PATCH("/:name", h.update)
}

type CreateCouponRequest struct {
	Name               string    `json:"name"`
	UserID             *int64    `json:"user_id"`
	ProductID          *int64    `json:"product_id"`
	Category           string    `json:"category"`
	Quantity           int64     `json:"quantity"`
	DiscountPercentage int64     `json:"discount_percentage"`
	ValidUntil         time.Time `json:"valid_until"`
	IsActive           *bool     `json:"is_active"`
}

type UpdateCouponRequest struct {
	Quantity           *int64     `json:"quantity"`
	DiscountPercentage *int64     `json:"discount_percentage"`
	ValidUntil         *time.Time `json:"valid_until"`
	IsActive           *bool      `json:"is_active"`
}

func (h *AdminCouponHandler) create(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CreateCouponRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//省略時は有効で作る
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	coupon, err := h.uc.Create(c.Request().Context(), actorID, usecase.CreateCouponInput{
		Name:               req.Name,
		UserID:             req.UserID,
		ProductID:          req.ProductID,
		Category:           req.Category,
		Quantity:           req.Quantity,
		DiscountPercentage: req.DiscountPercentage,
		ValidUntil:         req.ValidUntil,
		IsActive:           isActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, coupon)
}

func (h *AdminCouponHandler) update(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req UpdateCouponRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	coupon, err := h.uc.Update(c.Request().Context(), actorID, c.Param("name"), usecase.UpdateCouponInput{
		Quantity:           req.Quantity,
		DiscountPercentage: req.DiscountPercentage,
		ValidUntil:         req.ValidUntil,
		IsActive:           req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, coupon)
}
