package model

import "time"

// 在庫の増減種別。
type InventoryMovementKind string

const (
	//決済時の在庫引き当て。
	InventoryMovementReserve InventoryMovementKind = "RESERVE"

	//決済失敗・キャンセル時の在庫戻し。
	InventoryMovementRelease InventoryMovementKind = "RELEASE"
)

// 在庫台帳の1行。引き当て・戻しのたびに記録する。
type InventoryMovement struct {
	ID        int64                 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64                 `gorm:"not null;index" json:"product_id"`
	Kind      InventoryMovementKind `gorm:"type:varchar(20);not null" json:"kind"`
	Quantity  int64                 `gorm:"not null" json:"quantity"`
	CreatedAt time.Time             `gorm:"not null;index" json:"created_at"`
}
