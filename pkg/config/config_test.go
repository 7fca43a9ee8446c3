package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.Cart.Backend != CartBackendRedis {
		t.Fatalf("expected default redis backend, got %q", cfg.Cart.Backend)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
	if got := cfg.Cart.SessionIdleTTL; got != 30*time.Minute {
		t.Fatalf("expected session idle ttl 30m, got %v", got)
	}
	if cfg.Cart.TTL != 0 {
		t.Fatalf("expected no cart ttl by default, got %v", cfg.Cart.TTL)
	}
	if cfg.GCP.FirestoreCollection != "kv" {
		t.Fatalf("unexpected firestore collection %q", cfg.GCP.FirestoreCollection)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_BackendRequirements(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartBackend, CartBackendFirestore)
	if _, err := Load(); err == nil {
		t.Fatal("expected firestore backend without project id to fail")
	}

	t.Setenv(EnvGCPProjectID, "project-123")
	if _, err := Load(); err != nil {
		t.Fatalf("expected firestore backend with project id to load, got %v", err)
	}

	t.Setenv(EnvCartBackend, "etcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}

func TestLoad_SQLBackendBuildsLegacyDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartBackend, CartBackendSQL)
	t.Setenv(EnvDBHost, "db.internal")
	t.Setenv(EnvDBUser, "cart")
	t.Setenv(EnvDBName, "storefront")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := "postgres://cart@db.internal:5432/storefront?sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, cfg.DB.DSN)
	}
}

func TestLoad_SQLiteRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartBackend, CartBackendSQL)
	t.Setenv(EnvDBDriver, DBDriverSQLite)

	if _, err := Load(); err == nil {
		t.Fatal("expected sqlite without dsn to fail")
	}
}

func TestLoad_JWTProviderRequiresSecret(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvJWTSecret, "")

	if _, err := Load(); err == nil {
		t.Fatal("expected jwt provider without secret to fail")
	}

	t.Setenv(EnvAuthProvider, AuthProviderFirebase)
	t.Setenv(EnvGCPProjectID, "project-123")
	if _, err := Load(); err != nil {
		t.Fatalf("firebase provider should not need a jwt secret, got %v", err)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvJWTSecret, "secret")
	t.Setenv(EnvJWTIssuer, "storefront")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}

func TestLoad_CORSOrigins(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.App.CORSAllowedOrigins) != 1 || cfg.App.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins %v", cfg.App.CORSAllowedOrigins)
	}

	t.Setenv("STOREFRONT_CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.App.CORSAllowedOrigins) != 2 || cfg.App.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.App.CORSAllowedOrigins)
	}
}
