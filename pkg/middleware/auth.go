package middleware

import (
	"net/http"
	"strings"

	"github.com/reelgate/reelgate/pkg/auth"
	"github.com/reelgate/reelgate/pkg/contextkeys"
	"github.com/reelgate/reelgate/pkg/httputil"
)

// TokenAuth verifies the signed token on each request and attaches its
// claims to the request context. The token is read from the session cookie
// first, then from a Bearer Authorization header; both channels carry the
// same token.
type TokenAuth struct {
	issuer *auth.Issuer
}

// NewTokenAuth creates token verification middleware.
func NewTokenAuth(issuer *auth.Issuer) *TokenAuth {
	return &TokenAuth{issuer: issuer}
}

// Handler wraps an HTTP handler with token verification.
func (m *TokenAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := m.issuer.Verify(token)
		if err != nil {
			httputil.WriteAuthError(w, err)
			return
		}

		ctx := contextkeys.WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// GetClaims extracts verified claims from a request previously passed
// through TokenAuth. Returns nil when the request was not authenticated.
func GetClaims(r *http.Request) *auth.Claims {
	claims, ok := r.Context().Value(contextkeys.ClaimsKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// RequireScope creates middleware that rejects tokens missing the given
// scope. Must run inside TokenAuth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				httputil.WriteMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !hasScope(claims.Scopes, scope) {
				httputil.WriteMessage(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
