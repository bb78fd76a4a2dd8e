package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS answers preflight requests itself, so they never reach the
// service-token guard, and adds the allow headers to actual requests from
// an allowed origin. With no allowed origins it returns next unchanged.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	if len(config.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   config.AllowedMethods,
		AllowedHeaders:   config.AllowedHeaders,
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	})
	return c.Handler
}
