package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
)

type contextKey string

const operatorKey contextKey = "operator"

type AuthMiddleware struct {
	tokenService outbound.TokenService
}

func NewAuthMiddleware(tokenService outbound.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// RequireOperator rejects requests without a valid operator bearer token.
// The claims are available to handlers through OperatorFrom.
func (m *AuthMiddleware) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := m.tokenService.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFrom returns the authenticated operator, or nil
func OperatorFrom(ctx context.Context) *outbound.TokenClaims {
	if claims, ok := ctx.Value(operatorKey).(*outbound.TokenClaims); ok {
		return claims
	}
	return nil
}

// WithOperator attaches claims to ctx
func WithOperator(ctx context.Context, claims *outbound.TokenClaims) context.Context {
	return context.WithValue(ctx, operatorKey, claims)
}
