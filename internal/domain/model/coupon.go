package model

import "time"

// クーポン。nameはユニーク。
// user_id があればそのユーザー専用、category は対象カテゴリ。
type Coupon struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	UserID             *int64    `gorm:"index" json:"user_id,omitempty"`
	ProductID          *int64    `json:"product_id,omitempty"`
	Category           string    `gorm:"type:varchar(100);not null" json:"category"`
	Quantity           int64     `gorm:"not null" json:"quantity"`
	DiscountPercentage int64     `gorm:"not null" json:"discount_percentage"`
	ValidUntil         time.Time `gorm:"not null" json:"valid_until"`
	IsActive           bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
