package model

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"type:varchar(100);not null;index" json:"category"`
	Price       int64          `gorm:"not null" json:"price"`
	Discount    *int64         `json:"discount,omitempty"`
	Amount      int64          `gorm:"not null" json:"amount"`
	SaleOut     int64          `gorm:"not null;default:0" json:"sale_out"`
	IsActive    bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// EffectivePrice は販売価格。割引価格があればそちらを優先する。
func (p Product) EffectivePrice() int64 {
	if p.Discount != nil && *p.Discount > 0 {
		return *p.Discount
	}
	return p.Price
}
