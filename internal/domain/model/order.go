package model

import "time"

type OrderStatus string

const (
	OrderStatusUnpaid       OrderStatus = "unpaid"
	OrderStatusPaid         OrderStatus = "paid"
	OrderStatusPreparing    OrderStatus = "preparing"
	OrderStatusDelivering   OrderStatus = "delivering"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusSuccessfully OrderStatus = "successfully"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusRefund       OrderStatus = "refund"
	OrderStatusRefunded     OrderStatus = "refunded"
)

// 通常遷移。cancelledは非終端なら常に許可（IsTerminal参照）。
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusUnpaid:     {OrderStatusPaid},
	OrderStatusPaid:       {OrderStatusPreparing},
	OrderStatusPreparing:  {OrderStatusDelivering},
	OrderStatusDelivering: {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusSuccessfully},
	OrderStatusRefund:     {OrderStatusCancelled, OrderStatusRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusUnpaid, OrderStatusPaid, OrderStatusPreparing,
		OrderStatusDelivering, OrderStatusDelivered, OrderStatusSuccessfully,
		OrderStatusCancelled, OrderStatusRefund, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusSuccessfully, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo は段階飛ばしを許さない。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return !s.IsTerminal()
	}
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ShippingProvider string

const (
	ShippingProviderKerry        ShippingProvider = "kerry"
	ShippingProviderFlash        ShippingProvider = "flash"
	ShippingProviderThailandPost ShippingProvider = "thailand_post"
	ShippingProviderDHL          ShippingProvider = "dhl"
)

func (p ShippingProvider) Valid() bool {
	switch p {
	case ShippingProviderKerry, ShippingProviderFlash,
		ShippingProviderThailandPost, ShippingProviderDHL:
		return true
	}
	return false
}

// 注文。削除はしない（キャンセルはステータス）。
type Order struct {
	ID               int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64             `gorm:"not null;index" json:"user_id"`
	PaymentID        int64             `gorm:"not null;uniqueIndex" json:"payment_id"`
	AddressID        int64             `gorm:"not null" json:"address_id"`
	Status           OrderStatus       `gorm:"type:varchar(20);not null;index" json:"status"`
	ShippingProvider *ShippingProvider `gorm:"type:varchar(30)" json:"shipping_provider,omitempty"`
	TrackingID       *string           `gorm:"type:varchar(100)" json:"tracking_id,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
