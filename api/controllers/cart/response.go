package cart

import (
	cartsvc "github.com/angelmondragon/storefront/internal/cart"
)

// CartResponse is the public view of a cart session's store.
type CartResponse struct {
	IdentityKey string         `json:"identity_key"`
	Phase       cartsvc.Phase  `json:"phase"`
	Loading     bool           `json:"loading"`
	Lines       []cartsvc.Line `json:"lines"`
	ItemCount   int            `json:"item_count"`
	Subtotal    string         `json:"subtotal"`
}

// CountResponse is the body of GET /api/v1/cart/count.
type CountResponse struct {
	ItemCount int  `json:"item_count"`
	Loading   bool `json:"loading"`
}

func newCartResponse(store *cartsvc.Store) CartResponse {
	lines := store.Lines()
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	phase := store.Phase()
	return CartResponse{
		IdentityKey: store.IdentityKey(),
		Phase:       phase,
		Loading:     phase == cartsvc.PhaseLoading,
		Lines:       lines,
		ItemCount:   count,
		Subtotal:    store.Subtotal().StringFixed(2),
	}
}
