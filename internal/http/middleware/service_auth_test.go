package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestServiceJWTWithoutCredentials(t *testing.T) {
	var called bool
	rec := httptest.NewRecorder()
	ServiceJWT("", "")(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scenarios", nil))

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without calling handler, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"detail\":\"service auth disabled\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestServiceJWTMissingHeader(t *testing.T) {
	var called bool
	rec := httptest.NewRecorder()
	ServiceJWT("secret", "scenario-runner")(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scenarios", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestServiceJWTRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signedServiceToken(t, "wrong", "scenario-runner", time.Minute)},
		{"wrong audience", signedServiceToken(t, "secret", "billing", time.Minute)},
		{"expired", signedServiceToken(t, "secret", "scenario-runner", -time.Minute)},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			req := httptest.NewRequest(http.MethodGet, "/scenarios", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			ServiceJWT("secret", "scenario-runner")(okHandler(&called)).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized || called {
				t.Fatalf("expected rejection, got %d", rec.Code)
			}
		})
	}
}

func TestServiceJWTValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/scenarios", nil)
	req.Header.Set("Authorization", "Bearer "+signedServiceToken(t, "secret", "scenario-runner", time.Minute))
	rec := httptest.NewRecorder()

	called := false
	ServiceJWT("secret", "scenario-runner")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := ServiceClaimsFromContext(r.Context())
		if !ok || claims.Subject != "qa-runner" {
			t.Fatalf("expected service claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected handler to run, got %d", rec.Code)
	}
}

func TestServiceJWTStaticToken(t *testing.T) {
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/scenarios", nil)
	req.Header.Set("Authorization", "Bearer dev-token")
	rec := httptest.NewRecorder()
	ServiceJWT("", "", "dev-token")(okHandler(&called)).ServeHTTP(rec, req)
	if !called {
		t.Fatalf("expected static token to be accepted, got %d", rec.Code)
	}
}

func signedServiceToken(t *testing.T, secret, audience string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "qa-runner",
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
