// Package transport builds the authenticated HTTP clients used to reach the
// extraction backend and the scenario runner service.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// RunnerAudience is the audience of service tokens accepted by the runner.
	RunnerAudience = "scenario-runner"
	// ServiceIssuer is the issuer of self-minted service tokens.
	ServiceIssuer = "realty-qa"

	defaultTokenTTL = 15 * time.Minute
	defaultTimeout  = 60 * time.Second
	// tokens are refreshed this long before they expire
	earlyExpiry = 30 * time.Second
)

// ErrNoSecret is returned when a service token is requested without a signing secret.
var ErrNoSecret = errors.New("transport: service jwt secret required")

// Options configure NewHTTPClient. Token takes precedence over JWTSecret.
type Options struct {
	Token     string
	JWTSecret string
	Subject   string
	Audience  string
	TokenTTL  time.Duration
	Timeout   time.Duration
	Base      http.RoundTripper
}

// ServiceTokenSource mints HS256 service JWTs. Use with oauth2.ReuseTokenSource
// so a token is only minted when the previous one is close to expiry.
type ServiceTokenSource struct {
	secret   []byte
	subject  string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewServiceTokenSource creates a token source signing with secret.
func NewServiceTokenSource(secret, subject, audience string, ttl time.Duration) (*ServiceTokenSource, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if audience == "" {
		audience = RunnerAudience
	}
	return &ServiceTokenSource{
		secret:   []byte(secret),
		subject:  subject,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Token implements oauth2.TokenSource.
func (s *ServiceTokenSource) Token() (*oauth2.Token, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    ServiceIssuer,
		Subject:   s.subject,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("transport: sign service token: %w", err)
	}
	return &oauth2.Token{AccessToken: signed, TokenType: "Bearer", Expiry: expires}, nil
}

// TokenSource picks the token source described by opts, or nil when no
// credentials are configured.
func TokenSource(opts Options) (oauth2.TokenSource, error) {
	if tok := strings.TrimSpace(opts.Token); tok != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}), nil
	}
	if opts.JWTSecret == "" {
		return nil, nil
	}
	src, err := NewServiceTokenSource(opts.JWTSecret, opts.Subject, opts.Audience, opts.TokenTTL)
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, src, earlyExpiry), nil
}

// NewHTTPClient returns an http.Client that attaches a bearer token to every
// request. Without credentials the client is unauthenticated.
func NewHTTPClient(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	src, err := TokenSource(opts)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return &http.Client{Transport: base, Timeout: timeout}, nil
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base},
		Timeout:   timeout,
	}, nil
}

// BearerToken returns the current token from src, for callers that need the
// raw string (for example to print it from the CLI).
func BearerToken(ctx context.Context, src oauth2.TokenSource) (string, error) {
	if src == nil {
		return "", ErrNoSecret
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
