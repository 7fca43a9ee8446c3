package identity

import (
	"context"

	pkgauth "github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
)

const (
	ProviderJWT      = "jwt"
	ProviderFirebase = "firebase"
)

// JWTVerifier accepts HS256 tokens minted by pkg/auth.
type JWTVerifier struct {
	cfg config.JWTConfig
}

func NewJWTVerifier(cfg config.JWTConfig) *JWTVerifier {
	return &JWTVerifier{cfg: cfg}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := pkgauth.ParseAccessToken(v.cfg, token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email, Provider: ProviderJWT}, nil
}
