package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/redis"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "cart:guest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}
	if err := store.Set(ctx, "cart:guest", `[{"id":"p1","quantity":1}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "cart:guest", `[]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := store.Get(ctx, "cart:guest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "[]" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
	if err := store.Set(ctx, "cart:u1", `[{"id":"p2","quantity":2}]`); err != nil {
		t.Fatalf("set second key: %v", err)
	}
	if err := store.Delete(ctx, "cart:guest"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "cart:guest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if got, err := store.Get(ctx, "cart:u1"); err != nil || got != `[{"id":"p2","quantity":2}]` {
		t.Fatalf("other key disturbed: %q %v", got, err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLStore(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&models.KVEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := NewSQL(conn)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	exerciseStore(t, store)

	var entry models.KVEntry
	if err := conn.Where("key = ?", "cart:u1").Take(&entry).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if !entry.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected updated_at %v, got %v", fixed, entry.UpdatedAt)
	}
}

func TestNewSQLRequiresConnection(t *testing.T) {
	if _, err := NewSQL(nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", redis.ErrNil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func TestRedisStore(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
	store := &Redis{client: fake, ttl: 72 * time.Hour}
	exerciseStore(t, store)

	if ttl := fake.ttls["cart:u1"]; ttl != 72*time.Hour {
		t.Fatalf("expected ttl forwarded, got %v", ttl)
	}
}

type fakeDocs struct {
	docs map[string]map[string]any
	err  error
}

func (f *fakeDocs) Get(_ context.Context, id string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return doc, nil
}

func (f *fakeDocs) Set(_ context.Context, id string, data map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.docs[id] = data
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

func TestFirestoreStore(t *testing.T) {
	docs := &fakeDocs{docs: map[string]map[string]any{}}
	store := &Firestore{docs: docs, now: time.Now}
	exerciseStore(t, store)

	if _, ok := docs.docs["cart:u1"]; !ok {
		t.Fatalf("expected document id cart:u1, have %v", docs.docs)
	}
}

func TestFirestoreEscapesDocumentIDs(t *testing.T) {
	docs := &fakeDocs{docs: map[string]map[string]any{}}
	store := &Firestore{docs: docs, now: time.Now}

	if err := store.Set(context.Background(), "cart:team/alpha", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := docs.docs["cart:team%2Falpha"]; !ok {
		t.Fatalf("expected escaped id, have %v", docs.docs)
	}
	if got, err := store.Get(context.Background(), "cart:team/alpha"); err != nil || got != "[]" {
		t.Fatalf("unexpected get: %q %v", got, err)
	}
}

func TestFirestoreErrors(t *testing.T) {
	docs := &fakeDocs{docs: map[string]map[string]any{"cart:guest": {"value": 42}}}
	store := &Firestore{docs: docs, now: time.Now}
	if _, err := store.Get(context.Background(), "cart:guest"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected malformed document error, got %v", err)
	}

	docs.err = status.Error(codes.Unavailable, "down")
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to surface unavailable backend")
	}
}
