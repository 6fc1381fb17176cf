package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
)

// CORS wraps the whole router so preflight requests are answered before gin
// routing, including for paths that only register non-OPTIONS methods.
func CORS(cfg *config.CORSConfig, next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "X-Source-Document", "Content-Disposition", "Retry-After"},
		// bearer tokens travel in a header, cookies are never used
		AllowCredentials: false,
		MaxAge:           600,
	})
	return c.Handler(next)
}
