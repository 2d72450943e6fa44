package auth

import (
	"context"
	"net/http"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/Shatzii/sentinel/pkg/httpx"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AdminKeyContextKey is the key for storing the authenticated admin key in context
	AdminKeyContextKey contextKey = "admin_key"
)

// AdminKeyHeader carries the admin credential on management API requests
const AdminKeyHeader = "X-API-Key"

// RequireAPIKey authenticates management API requests with an admin API key
// and injects the key record into context for audit attribution
func RequireAPIKey(manager *APIKeyManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plainKey := r.Header.Get(AdminKeyHeader)
			if plainKey == "" {
				httpx.WriteUnauthorized(w, "missing API key")
				return
			}

			key, ok := manager.Authenticate(plainKey)
			if !ok {
				httpx.WriteUnauthorized(w, "invalid or expired API key")
				return
			}

			ctx := context.WithValue(r.Context(), AdminKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the audit actor name for the authenticated admin
// key, or "system" when the request carries none (internal callers)
func ActorFromContext(ctx context.Context) string {
	if key, ok := KeyFromContext(ctx); ok {
		return "apikey:" + key.Name
	}
	return "system"
}

// KeyFromContext extracts the authenticated admin key from context
func KeyFromContext(ctx context.Context) (*models.APIKey, bool) {
	k, ok := ctx.Value(AdminKeyContextKey).(*models.APIKey)
	return k, ok
}
