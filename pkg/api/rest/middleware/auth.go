package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string
	Enabled     bool
	PublicPaths []string // served without a token
	AdminPaths  []string // require the admin role
}

// Claims scope a token to the namespaces it may operate on. A token whose
// Namespaces list contains "*" (or is empty) may touch any namespace; the
// subject identifies the caller for rate limiting and audit.
type Claims struct {
	Roles      []string `json:"roles,omitempty"`
	Namespaces []string `json:"namespaces,omitempty"`
	jwt.RegisteredClaims
}

// AllowsNamespace reports whether the token may operate on the namespace
func (c *Claims) AllowsNamespace(namespace string) bool {
	if len(c.Namespaces) == 0 {
		return true
	}
	for _, ns := range c.Namespaces {
		if ns == "*" || ns == namespace {
			return true
		}
	}
	return false
}

func (c *Claims) hasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// contextKey is a custom type for context keys
type contextKey string

const claimsContextKey contextKey = "claims"

// AuthMiddleware returns a middleware enforcing bearer-token auth on
// everything outside the public paths
func AuthMiddleware(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled || pathMatches(config.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authenticate(r, config.JWTSecret)
			if err != nil {
				writeJSONError(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if pathMatches(config.AdminPaths, r.URL.Path) && !claims.hasRole("admin") {
				writeJSONError(w, "admin role required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate extracts and verifies the bearer token of one request
func authenticate(r *http.Request, secret string) (*Claims, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, errors.New("missing bearer token")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{},
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// pathMatches reports whether path falls under any of the prefixes
func pathMatches(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GetClaimsFromContext retrieves the verified claims of a request, if it
// passed through an enabled auth middleware
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// AuthorizeNamespace checks the request's token against the namespace an
// index operation targets. Requests that carried no claims (auth
// disabled, or a public path) are allowed through.
func AuthorizeNamespace(ctx context.Context, namespace string) error {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	if !claims.AllowsNamespace(namespace) {
		return fmt.Errorf("token not valid for namespace %q", namespace)
	}
	return nil
}

// GenerateToken mints a namespace-scoped token, used by the CLI and by
// tests against servers running with auth enabled
func GenerateToken(subject string, roles, namespaces []string, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Roles:      roles,
		Namespaces: namespaces,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "dci-db",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}
