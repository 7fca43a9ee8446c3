package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/identity"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Identity resolves the optional bearer token and feeds the result to the
// session's identity hub. Requests without a token are guests; a token that
// fails verification is rejected. Must run after CartSession.
//
// The session stays locked until next returns, so a concurrent request with
// another identity cannot swap the cart under this one.
func Identity(verifier identity.Verifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := CartSessionFromContext(ctx)
			if sess == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart session missing"))
				return
			}

			token, ok, err := validators.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid credentials"))
				return
			}

			var id *identity.Identity
			if ok {
				if verifier == nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token authentication unavailable"))
					return
				}
				id, err = verifier.Verify(ctx, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
			}

			if logg != nil && id.SignedIn() {
				ctx = logg.WithUserID(ctx, id.UserID)
			}
			sess.Lock()
			defer sess.Unlock()
			if sess.Hub.Set(ctx, id) && logg != nil {
				logg.Info(logg.WithIdentityKey(ctx, sess.Store.IdentityKey()), "cart identity changed")
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}
