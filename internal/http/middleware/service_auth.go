package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const serviceClaimsKey contextKey = "serviceClaims"

// ServiceJWT enforces an HMAC-signed service JWT issued for audience. Static
// bearer tokens listed in staticTokens are accepted as-is.
func ServiceJWT(secret, audience string, staticTokens ...string) func(http.Handler) http.Handler {
	static := make(map[string]struct{}, len(staticTokens))
	for _, tok := range staticTokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			static[tok] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" && len(static) == 0 {
				writeDetail(w, http.StatusUnauthorized, "service auth disabled")
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeDetail(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			if _, ok := static[tokenString]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if secret == "" {
				writeDetail(w, http.StatusUnauthorized, "invalid token")
				return
			}

			opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
			if audience != "" {
				opts = append(opts, jwt.WithAudience(audience))
			}
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}, opts...)
			if err != nil || !token.Valid {
				writeDetail(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), serviceClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceClaimsFromContext returns the verified service claims if present.
func ServiceClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(serviceClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}
