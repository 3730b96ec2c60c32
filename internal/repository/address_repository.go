package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 住所(Address)の取得窓口。登録・編集は別システムの持ち物。
type AddressRepository interface {
	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	//住所がそのユーザーのものかを確認
	IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error)
}
