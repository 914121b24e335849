package middle

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mstgnz/storepay/infra/auth"
	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/response"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.JWTClaims, error)
}

// JWTAuthMiddleware validates the bearer token and stores its tenant in the request context
func JWTAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Error(w, http.StatusUnauthorized, "Authorization header required", nil)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Error(w, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "Token required", nil)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Token has expired"
				}
				response.Error(w, http.StatusUnauthorized, msg, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), claims.TenantID)))
		})
	}
}

// WithTenantID returns a context carrying the authenticated tenant
func WithTenantID(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, config.TenantKey, tenantID)
}

// GetTenantIDFromContext returns the authenticated tenant or 0
func GetTenantIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(config.TenantKey).(int64)
	return id
}
