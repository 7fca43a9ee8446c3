package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront/pkg/config"
)

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier resolves Firebase ID tokens issued to the storefront SPA.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier initializes a Firebase app for the configured project.
func NewFirebaseVerifier(ctx context.Context, cfg config.GCPConfig) (*FirebaseVerifier, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}

	var opts []option.ClientOption
	if cred := strings.TrimSpace(cfg.CredentialsFile); cred != "" {
		opts = append(opts, option.WithCredentialsFile(cred))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth init: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialized")
	}
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(decoded.UID)
	if uid == "" {
		return nil, errors.New("firebase token carries no uid")
	}

	id := &Identity{UserID: uid, Provider: ProviderFirebase}
	if email, ok := decoded.Claims["email"].(string); ok {
		id.Email = strings.TrimSpace(email)
	}
	return id, nil
}
