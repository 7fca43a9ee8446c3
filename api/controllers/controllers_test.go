package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15},
	}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig())(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "dev", resp.Header().Get(envHeader))
	assert.JSONEq(t, `{"data":{"status":"live"}}`, resp.Body.String())
}

func TestHealthReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("all up", func(t *testing.T) {
		resp := httptest.NewRecorder()
		HealthReady(testConfig(), logger.Nop(), map[string]Pinger{"kv": ok, "pubsub": nil})(
			resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"data":{"status":"ready","checks":{"kv":"up"}}}`, resp.Body.String())
	})

	t.Run("dependency down", func(t *testing.T) {
		resp := httptest.NewRecorder()
		HealthReady(testConfig(), logger.Nop(), map[string]Pinger{"kv": ok, "redis": down})(
			resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
		var body struct {
			Error struct {
				Code    string            `json:"code"`
				Details map[string]string `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "DEPENDENCY_ERROR", body.Error.Code)
		assert.Equal(t, map[string]string{"kv": "up", "redis": "down"}, body.Error.Details)
	})
}

func TestDevTokenMintsVerifiableToken(t *testing.T) {
	cfg := testConfig()
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/dev-token",
		strings.NewReader(`{"user_id":" user-42 ","email":"a@example.com"}`))
	DevToken(cfg.JWT, logger.Nop())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var body struct {
		Data devTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Bearer", body.Data.TokenType)
	assert.Equal(t, 900, body.Data.ExpiresIn)

	claims, err := auth.ParseAccessToken(cfg.JWT, body.Data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestDevTokenValidation(t *testing.T) {
	cases := map[string]string{
		"missing user":  `{}`,
		"blank user":    `{"user_id":"   "}`,
		"bad email":     `{"user_id":"u1","email":"nope"}`,
		"unknown field": `{"user_id":"u1","role":"admin"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			DevToken(testConfig().JWT, logger.Nop())(resp,
				httptest.NewRequest(http.MethodPost, "/api/v1/auth/dev-token", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		})
	}
}
