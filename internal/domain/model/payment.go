package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodPromptPay  PaymentMethod = "prompt_pay"
)

// 決済レコード。1回のcharge試行につき1行。
// charge_id はwebhook照合のキーなのでユニーク必須。
type Payment struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ChargeID      string        `gorm:"type:varchar(100);not null;uniqueIndex" json:"charge_id"`
	UserID        int64         `gorm:"not null;index" json:"user_id"`
	Amount        int64         `gorm:"not null" json:"amount"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(30);not null" json:"payment_method"`
	ExpiresAt     *time.Time    `gorm:"index" json:"expires_at,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
