package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront/api/controllers/cart"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/internal/sessions"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type sessionSource interface {
	Acquire(ctx context.Context, id string) (*sessions.Session, error)
	Release(sess *sessions.Session)
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Sessions sessionSource
	Verifier identity.Verifier
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if !cfg.App.IsProd() && cfg.Auth.Provider == config.AuthProviderJWT {
			r.Post("/auth/dev-token", controllers.DevToken(cfg.JWT, logg))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.CartSession(deps.Sessions, sessionCookieTTL(cfg), cfg.App.IsProd(), logg))
			r.Use(middleware.Identity(deps.Verifier, logg))

			r.Get("/", cartcontrollers.CartFetch(logg))
			r.Delete("/", cartcontrollers.CartClear(logg))
			r.Get("/count", cartcontrollers.CartCount(logg))
			r.Post("/items", cartcontrollers.CartAddItem(logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(logg))
		})
	})

	return r
}

// sessionCookieTTL outlives the server-side idle ttl.
func sessionCookieTTL(cfg *config.Config) time.Duration {
	return cfg.Cart.SessionIdleTTL * 2
}
