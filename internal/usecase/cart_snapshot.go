package usecase

import (
	"context"
	"fmt"
	"net/http"

	repo "storefront/internal/repository"
)

// CartLineItem は決済時点のカート明細スナップショット。
// 単価はカート追加時ではなく「今」の商品価格（割引があれば割引価格）。
type CartLineItem struct {
	ProductID int64
	Name      string
	Category  string
	UnitPrice int64
	Quantity  int64
}

// snapshotCart はカートを読み取り専用でスナップショットする。
// 在庫チェックはここで1回、引き当て時にもう1回行う。
func snapshotCart(ctx context.Context, r repo.TxRepos, userID int64) ([]CartLineItem, int64, error) {
	cart, err := r.Carts().FindByUserID(ctx, userID)
	if err == repo.ErrNotFound {
		return nil, 0, NewHTTPError(http.StatusBadRequest, "cart is empty")
	}
	if err != nil {
		return nil, 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return nil, 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if len(cartItems) == 0 {
		return nil, 0, NewHTTPError(http.StatusBadRequest, "cart is empty")
	}

	lineItems := make([]CartLineItem, 0, len(cartItems))
	for _, ci := range cartItems {
		p, err := r.Products().FindByID(ctx, ci.ProductID)
		if err == repo.ErrNotFound {
			return nil, 0, NewHTTPError(http.StatusBadRequest, "product not found for item in cart")
		}
		if err != nil {
			return nil, 0, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if ci.Quantity > p.Amount {
			return nil, 0, NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("product %q exceeds available stock, only %d left", p.Name, p.Amount))
		}

		lineItems = append(lineItems, CartLineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			UnitPrice: p.EffectivePrice(),
			Quantity:  ci.Quantity,
		})
	}

	return lineItems, cart.ID, nil
}

// lineItemsTotal は合計金額を最小通貨単位（サタン）で返す。
func lineItemsTotal(items []CartLineItem) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * 100 * it.Quantity
	}
	return total
}
