package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/internal/sessions"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	CartSessionHeader = "X-Cart-Session"
	CartSessionCookie = "sf_cart_session"
)

type sessionSource interface {
	Acquire(ctx context.Context, id string) (*sessions.Session, error)
	Release(sess *sessions.Session)
}

// CartSession resolves the caller's cart session from the X-Cart-Session
// header or the sf_cart_session cookie, issuing a new id when neither holds a
// valid one. The id is echoed in both.
func CartSession(source sessionSource, cookieTTL time.Duration, secure bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionIDFromRequest(r)
			if id == "" {
				id = uuid.NewString()
			}

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithSessionID(ctx, id)
			}

			sess, err := source.Acquire(ctx, id)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open cart session"))
				return
			}
			defer source.Release(sess)

			w.Header().Set(CartSessionHeader, id)
			cookie := &http.Cookie{
				Name:     CartSessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			}
			if cookieTTL > 0 {
				cookie.MaxAge = int(cookieTTL.Seconds())
			}
			http.SetCookie(w, cookie)

			next.ServeHTTP(w, r.WithContext(WithCartSession(ctx, sess)))
		})
	}
}

func sessionIDFromRequest(r *http.Request) string {
	candidates := []string{r.Header.Get(CartSessionHeader)}
	if c, err := r.Cookie(CartSessionCookie); err == nil {
		candidates = append(candidates, c.Value)
	}
	for _, raw := range candidates {
		parsed, err := uuid.Parse(strings.TrimSpace(raw))
		if err == nil {
			return parsed.String()
		}
	}
	return ""
}
