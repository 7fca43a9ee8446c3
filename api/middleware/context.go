package middleware

import (
	"context"

	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/internal/sessions"
)

type contextKey string

const (
	ctxCartSession contextKey = "cart_session"
	ctxIdentity    contextKey = "identity"
)

// CartSessionFromContext returns the cart session resolved by CartSession.
func CartSessionFromContext(ctx context.Context) *sessions.Session {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxCartSession).(*sessions.Session); ok {
		return v
	}
	return nil
}

// IdentityFromContext returns the caller identity, nil for guests.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*identity.Identity); ok {
		return v
	}
	return nil
}

func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id.SignedIn() {
		return id.UserID
	}
	return ""
}

// WithCartSession injects the cart session into the context.
func WithCartSession(ctx context.Context, sess *sessions.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartSession, sess)
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}
