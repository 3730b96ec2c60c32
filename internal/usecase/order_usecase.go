package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type OrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	products   repo.ProductRepository
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	products repo.ProductRepository,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		products:   products,
	}
}

type OrderItemOutput struct {
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int64  `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

type OrderOutput struct {
	ID               int64                   `json:"id"`
	UserID           int64                   `json:"user_id"`
	PaymentID        int64                   `json:"payment_id"`
	AddressID        int64                   `json:"address_id"`
	Status           model.OrderStatus       `json:"status"`
	ShippingProvider *model.ShippingProvider `json:"shipping_provider,omitempty"`
	TrackingID       *string                 `json:"tracking_id,omitempty"`
	Items            []OrderItemOutput       `json:"items"`
	CreatedAt        time.Time               `json:"created_at"`
}

type OrderListOutput struct {
	Orders []OrderOutput `json:"orders"`
	Total  int64         `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, status string, page, limit int) (OrderListOutput, error) {
	if status != "" && !model.OrderStatus(status).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, status, page, limit)
	if err != nil {
		return OrderListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outputs, err := u.toOrderOutputs(ctx, orders)
	if err != nil {
		return OrderListOutput{}, err
	}

	return OrderListOutput{Orders: outputs, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID, orderID int64) (OrderOutput, error) {
	order, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.UserID != userID {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}

	outputs, err := u.toOrderOutputs(ctx, []model.Order{order})
	if err != nil {
		return OrderOutput{}, err
	}
	return outputs[0], nil
}

func (u *OrderUsecase) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return OrderListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outputs, err := u.toOrderOutputs(ctx, orders)
	if err != nil {
		return OrderListOutput{}, err
	}

	return OrderListOutput{Orders: outputs, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

type UpdateOrderStatusInput struct {
	OrderID          int64
	NextStatus       model.OrderStatus
	ShippingProvider model.ShippingProvider
	TrackingID       string
}

// UpdateStatus は管理者による注文ステータス更新。
// 遷移表に無い更新は拒否し、cancelledへの遷移だけ在庫戻しと
// 支払い取消を同じTxで行う。
func (u *OrderUsecase) UpdateStatus(ctx context.Context, actorUserID int64, in UpdateOrderStatusInput) error {
	if !in.NextStatus.Valid() {
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := r.Orders().FindByID(ctx, in.OrderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if order.Status == in.NextStatus {
			return NewHTTPError(http.StatusBadRequest, "order is already "+string(in.NextStatus))
		}
		if !order.Status.CanTransitionTo(in.NextStatus) {
			return NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("cannot transition from %s to %s", order.Status, in.NextStatus))
		}

		switch in.NextStatus {
		case model.OrderStatusDelivering:
			if in.ShippingProvider == "" || in.TrackingID == "" {
				return NewHTTPError(http.StatusBadRequest, "shipping provider and tracking id are required")
			}
			if !in.ShippingProvider.Valid() {
				return NewHTTPError(http.StatusBadRequest, "invalid shipping provider")
			}
			if err := r.Orders().UpdateShipping(ctx, order.ID, in.NextStatus, in.ShippingProvider, in.TrackingID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

		case model.OrderStatusCancelled:
			if err := r.Orders().UpdateStatus(ctx, order.ID, in.NextStatus); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err := u.releaseOrderStock(ctx, r, order.ID); err != nil {
				return err
			}
			if err := r.Payments().UpdateStatus(ctx, order.PaymentID, model.PaymentStatusCancelled, nil); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

		default:
			if err := r.Orders().UpdateStatus(ctx, order.ID, in.NextStatus); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		return u.writeAuditLog(ctx, r, actorUserID, order, in)
	})
}

func (u *OrderUsecase) releaseOrderStock(ctx context.Context, r repo.TxRepos, orderID int64) error {
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	for _, it := range items {
		if err := r.Inventory().Release(ctx, it.ProductID, it.Quantity); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "failed to restore stock")
		}
	}
	return nil
}

func (u *OrderUsecase) writeAuditLog(ctx context.Context, r repo.TxRepos, actorUserID int64, before model.Order, in UpdateOrderStatusInput) error {
	type statusSnapshot struct {
		Status           model.OrderStatus       `json:"status"`
		ShippingProvider *model.ShippingProvider `json:"shipping_provider,omitempty"`
		TrackingID       *string                 `json:"tracking_id,omitempty"`
	}

	beforeJSON, _ := json.Marshal(statusSnapshot{
		Status:           before.Status,
		ShippingProvider: before.ShippingProvider,
		TrackingID:       before.TrackingID,
	})

	after := statusSnapshot{Status: in.NextStatus}
	if in.NextStatus == model.OrderStatusDelivering {
		after.ShippingProvider = &in.ShippingProvider
		after.TrackingID = &in.TrackingID
	}
	afterJSON, _ := json.Marshal(after)

	err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   before.ID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
	})
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "failed to write audit log")
	}
	return nil
}

func (u *OrderUsecase) toOrderOutputs(ctx context.Context, orders []model.Order) ([]OrderOutput, error) {
	outputs := make([]OrderOutput, 0, len(orders))
	names := map[int64]string{}

	for _, order := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, order.ID)
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		itemOutputs := make([]OrderItemOutput, 0, len(items))
		for _, it := range items {
			name, ok := names[it.ProductID]
			if !ok {
				p, err := u.products.FindByID(ctx, it.ProductID)
				if err == nil {
					name = p.Name
				}
				names[it.ProductID] = name
			}
			itemOutputs = append(itemOutputs, OrderItemOutput{
				ProductID:       it.ProductID,
				ProductName:     name,
				Quantity:        it.Quantity,
				PriceAtPurchase: it.PriceAtPurchase,
			})
		}

		outputs = append(outputs, OrderOutput{
			ID:               order.ID,
			UserID:           order.UserID,
			PaymentID:        order.PaymentID,
			AddressID:        order.AddressID,
			Status:           order.Status,
			ShippingProvider: order.ShippingProvider,
			TrackingID:       order.TrackingID,
			Items:            itemOutputs,
			CreatedAt:        order.CreatedAt,
		})
	}
	return outputs, nil
}
