package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByPaymentID(ctx context.Context, paymentID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, status string, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	// webhook照合専用。payment参照をキーに状態を進める。
	UpdateStatusByPaymentID(ctx context.Context, paymentID int64, status model.OrderStatus) error

	// delivering遷移時に配送情報も一緒に書く。
	UpdateShipping(ctx context.Context, orderID int64, status model.OrderStatus, provider model.ShippingProvider, trackingID string) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
