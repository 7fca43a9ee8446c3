package cart

import "github.com/angelmondragon/storefront/internal/identity"

const (
	KeyPrefix = "cart:"
	GuestKey  = KeyPrefix + "guest"
)

// KeyFor returns the storage key owning the cart of id. Guests share
// GuestKey.
func KeyFor(id *identity.Identity) string {
	if !id.SignedIn() {
		return GuestKey
	}
	return KeyPrefix + id.UserID
}
