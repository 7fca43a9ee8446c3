package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type devTokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

type devTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// DevToken mints an access token for any user id. Only routed outside
// production with the jwt auth provider.
func DevToken(cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload devTokenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := validators.SanitizeString(payload.UserID, 128)
		if userID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
					WithDetails(map[string]string{"user_id": "is required"}))
			return
		}

		token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
			UserID: userID,
			Email:  validators.SanitizeString(payload.Email, 0),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, devTokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   cfg.ExpirationMinutes * 60,
		})
	}
}
