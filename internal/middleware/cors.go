package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the back-office front end to call the API. Only the configured
// origins are echoed back; an empty list disables cross-origin access.
// Sessions are carried in the Authorization header, never cookies.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           3600,
	})
}
