package identity

import (
	"context"
	"strings"
)

// Identity is the signed-in user as reported by the auth provider. A nil
// *Identity means nobody is signed in (guest).
type Identity struct {
	UserID   string
	Email    string
	Provider string
}

// SignedIn reports whether the identity belongs to a user.
func (i *Identity) SignedIn() bool {
	return i != nil && strings.TrimSpace(i.UserID) != ""
}

// Clone returns a copy that callers may keep without sharing state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// Same reports whether a and b name the same signed-in user, or are both guests.
func Same(a, b *Identity) bool {
	if !a.SignedIn() || !b.SignedIn() {
		return a.SignedIn() == b.SignedIn()
	}
	return a.UserID == b.UserID
}

// Listener receives identity transitions. id is nil for "signed out".
type Listener func(ctx context.Context, id *Identity)

// Observer delivers identity transitions to subscribers. The returned
// function releases the subscription and may be called more than once.
type Observer interface {
	Subscribe(fn Listener) (unsubscribe func())
}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
