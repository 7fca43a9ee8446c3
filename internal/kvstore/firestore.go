package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront/pkg/config"
)

const (
	firestoreValueField   = "value"
	firestoreUpdatedField = "updatedAt"
	firestorePingDoc      = "healthcheck"
)

type docStore interface {
	Get(ctx context.Context, id string) (map[string]any, error)
	Set(ctx context.Context, id string, data map[string]any) error
	Delete(ctx context.Context, id string) error
}

// Firestore keeps one document per key in a single collection. Document ids
// are the path-escaped key.
type Firestore struct {
	docs   docStore
	client *firestore.Client
	now    func() time.Time
}

// NewFirestore connects to the configured project and collection.
func NewFirestore(ctx context.Context, cfg config.GCPConfig) (*Firestore, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	collection := strings.TrimSpace(cfg.FirestoreCollection)
	if collection == "" {
		return nil, errors.New("firestore collection is required")
	}

	var opts []option.ClientOption
	if cred := strings.TrimSpace(cfg.CredentialsFile); cred != "" {
		opts = append(opts, option.WithCredentialsFile(cred))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Firestore{
		docs:   collectionDocs{col: client.Collection(collection)},
		client: client,
		now:    time.Now,
	}, nil
}

func (f *Firestore) Get(ctx context.Context, key string) (string, error) {
	data, err := f.docs.Get(ctx, docID(key))
	if status.Code(err) == codes.NotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	value, ok := data[firestoreValueField].(string)
	if !ok {
		return "", fmt.Errorf("firestore document %q has no string value", key)
	}
	return value, nil
}

func (f *Firestore) Set(ctx context.Context, key, value string) error {
	return f.docs.Set(ctx, docID(key), map[string]any{
		firestoreValueField:   value,
		firestoreUpdatedField: f.now().UTC(),
	})
}

func (f *Firestore) Delete(ctx context.Context, key string) error {
	return f.docs.Delete(ctx, docID(key))
}

// Ping reads a sentinel document; a missing document still proves the
// backend is reachable.
func (f *Firestore) Ping(ctx context.Context) error {
	_, err := f.docs.Get(ctx, firestorePingDoc)
	if err == nil || status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (f *Firestore) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

func docID(key string) string {
	return url.PathEscape(key)
}

type collectionDocs struct {
	col *firestore.CollectionRef
}

func (c collectionDocs) Get(ctx context.Context, id string) (map[string]any, error) {
	snap, err := c.col.Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Data(), nil
}

func (c collectionDocs) Set(ctx context.Context, id string, data map[string]any) error {
	_, err := c.col.Doc(id).Set(ctx, data)
	return err
}

func (c collectionDocs) Delete(ctx context.Context, id string) error {
	_, err := c.col.Doc(id).Delete(ctx)
	return err
}
