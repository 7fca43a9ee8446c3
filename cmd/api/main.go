package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/cartevents"
	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/internal/kvstore"
	"github.com/angelmondragon/storefront/internal/sessions"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/instance"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/pubsub"
	"github.com/angelmondragon/storefront/pkg/redis"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

type closer func() error

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logg.Error(context.Background(), "error releasing resource", err)
			}
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(promReg)
	jobMetrics := metrics.NewJobMetrics(promReg)

	kv, kvCloser, err := openKV(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap cart storage", err)
		os.Exit(1)
	}
	closers = append(closers, kvCloser)
	pingers := map[string]controllers.Pinger{"cart_storage": kv}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap identity verifier", err)
		os.Exit(1)
	}

	var events cart.EventSink
	if cfg.PubSub.CartTopic != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		publisher := cartevents.New(psClient.CartPublisher(), logg)
		events = publisher
		pingers["pubsub"] = psClient
		closers = append(closers, psClient.Close, func() error {
			publisher.Close()
			return nil
		})
	}

	registry, err := sessions.NewRegistry(sessions.Params{
		NewStore: func() (*cart.Store, error) {
			return cart.NewStore(cart.StoreParams{
				KV:      kv,
				Logger:  logg,
				Metrics: cartMetrics,
				Events:  events,
			})
		},
		IdleTTL: cfg.Cart.SessionIdleTTL,
		Logger:  logg,
		Gauge:   cartMetrics,
		Jobs:    jobMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session registry", err)
		os.Exit(1)
	}
	go registry.Run(ctx, cfg.Cart.SweepInterval)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"cart_backend":  cfg.Cart.Backend,
		"auth_provider": cfg.Auth.Provider,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Sessions: registry,
			Verifier: verifier,
			Pingers:  pingers,
			Gatherer: promReg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}

func openKV(ctx context.Context, cfg *config.Config, logg *logger.Logger) (kvstore.Store, closer, error) {
	switch cfg.Cart.Backend {
	case config.CartBackendMemory:
		logg.Warn(ctx, "cart storage is in-memory; carts are lost on restart")
		return kvstore.NewMemory(), noopCloser, nil

	case config.CartBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, cfg.Cart.KeyNamespace, logg)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewRedis(client, cfg.Cart.TTL), client.Close, nil

	case config.CartBackendSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("dev migrations: %w", err)
		}
		store, err := kvstore.NewSQL(client.DB())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil

	case config.CartBackendFirestore:
		store, err := kvstore.NewFirestore(ctx, cfg.GCP)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported cart backend %q", cfg.Cart.Backend)
}

func newVerifier(ctx context.Context, cfg *config.Config) (identity.Verifier, error) {
	switch cfg.Auth.Provider {
	case config.AuthProviderJWT:
		return identity.NewJWTVerifier(cfg.JWT), nil
	case config.AuthProviderFirebase:
		return identity.NewFirebaseVerifier(ctx, cfg.GCP)
	}
	return nil, fmt.Errorf("unsupported auth provider %q", cfg.Auth.Provider)
}

func noopCloser() error { return nil }
