package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// CartFetch returns the lines and totals of the session's cart.
func CartFetch(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartCount returns the item count badge value.
func CartCount(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, CountResponse{ItemCount: store.ItemCount(), Loading: store.Loading()})
	}
}

// CartAddItem adds a product snapshot to the cart.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := readyStoreFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := payload.validate(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.AddItem(r.Context(), *payload.Product, payload.quantity())
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartUpdateItem sets the quantity of a line; quantities below 1 remove it.
func CartUpdateItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := readyStoreFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload UpdateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.UpdateQuantity(r.Context(), productID, *payload.Quantity)
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartRemoveItem drops a line. Unknown products are not an error.
func CartRemoveItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := readyStoreFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.RemoveItem(r.Context(), productID)
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartClear empties the cart, typically after an order is placed.
func CartClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := readyStoreFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.Clear(r.Context())
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

func storeFromRequest(r *http.Request) (*cartsvc.Store, error) {
	sess := middleware.CartSessionFromContext(r.Context())
	if sess == nil || sess.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart session unavailable")
	}
	return sess.Store, nil
}

func readyStoreFromRequest(r *http.Request) (*cartsvc.Store, error) {
	store, err := storeFromRequest(r)
	if err != nil {
		return nil, err
	}
	if store.Loading() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is loading")
	}
	return store, nil
}

func productIDParam(r *http.Request) (string, error) {
	productID := validators.SanitizeString(chi.URLParam(r, "productId"), 0)
	if productID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if len(productID) > maxProductIDLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is too long")
	}
	return productID, nil
}
