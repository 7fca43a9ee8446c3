package cart

import (
	"strings"

	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

const maxProductIDLength = 256

// AddItemRequest is the body of POST /api/v1/cart/items. The product object
// is stored verbatim apart from its quantity field.
//
// The max tags mirror cartsvc.MaxQuantity.
type AddItemRequest struct {
	Product  *cartsvc.Product `json:"product" validate:"required"`
	Quantity *int             `json:"quantity,omitempty" validate:"omitempty,max=9999"`
}

// UpdateQuantityRequest is the body of PATCH /api/v1/cart/items/{productId}.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=9999"`
}

func (r AddItemRequest) validate() error {
	if strings.TrimSpace(r.Product.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"product.id": "is required"})
	}
	if len(r.Product.ID) > maxProductIDLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"product.id": "is too long"})
	}
	return nil
}

func (r AddItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}
