package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that applies the storefront's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CartSessionHeader, RequestIDHeader},
		ExposedHeaders:   []string{CartSessionHeader, RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
