package usecase

import (
	"context"
	"fmt"
	"net/http"

	repo "storefront/internal/repository"
)

type CartUsecase struct {
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
}

func NewCartUsecase(
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{carts: carts, cartItems: cartItems, products: products}
}

// カート表示用。単価は保存値ではなく今の商品価格を毎回引き直す。
type CartItemOutput struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type CartOutput struct {
	CartID int64            `json:"cart_id"`
	Items  []CartItemOutput `json:"items"`
	Total  int64            `json:"total"`
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	cart, err := u.carts.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := CartOutput{CartID: cart.ID, Items: []CartItemOutput{}}
	for _, ci := range items {
		p, err := u.products.FindByID(ctx, ci.ProductID)
		if err == repo.ErrNotFound {
			// 商品が消えた明細は表示しない
			continue
		}
		if err != nil {
			return CartOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		unitPrice := p.EffectivePrice()
		out.Items = append(out.Items, CartItemOutput{
			ID:        ci.ID,
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: unitPrice,
			Quantity:  ci.Quantity,
			Subtotal:  unitPrice * ci.Quantity,
		})
		out.Total += unitPrice * ci.Quantity
	}
	return out, nil
}

func (u *CartUsecase) AddToCart(ctx context.Context, userID, productID, quantity int64) error {
	if quantity <= 0 {
		return NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}

	p, err := u.products.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return NewHTTPError(http.StatusBadRequest, "product is not available")
	}
	// 追加時点の在庫との突き合わせ。確定時にもう一度チェックする。
	if quantity > p.Amount {
		return NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("product %q exceeds available stock, only %d left", p.Name, p.Amount))
	}

	cart, err := u.carts.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := u.cartItems.UpsertByCartAndProduct(ctx, cart.ID, userID, productID, quantity); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID, cartItemID, quantity int64) error {
	if quantity <= 0 {
		return NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}

	if err := u.mustOwnCartItem(ctx, userID, cartItemID); err != nil {
		return err
	}

	item, err := u.cartItems.FindByID(ctx, cartItemID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p, err := u.products.FindByID(ctx, item.ProductID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if quantity > p.Amount {
		return NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("product %q exceeds available stock, only %d left", p.Name, p.Amount))
	}

	if err := u.cartItems.UpdateQuantity(ctx, cartItemID, quantity); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *CartUsecase) RemoveCartItem(ctx context.Context, userID, cartItemID int64) error {
	if err := u.mustOwnCartItem(ctx, userID, cartItemID); err != nil {
		return err
	}
	if err := u.cartItems.DeleteByID(ctx, cartItemID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *CartUsecase) mustOwnCartItem(ctx context.Context, userID, cartItemID int64) error {
	owned, err := u.cartItems.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !owned {
		return NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	return nil
}
