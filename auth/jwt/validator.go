package jwt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/intentflow/errors"
)

// Scopes understood by the execution API.
const (
	ScopeExecute = "executions:write"
	ScopeRead    = "executions:read"
)

// Claims are the token claims of an API caller.
type Claims struct {
	gojwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Validator parses and verifies tokens.
type Validator struct {
	cfg    Config
	parser *gojwt.Parser
}

// NewValidator creates a validator. cfg is defaulted and validated.
func NewValidator(cfg Config) (*Validator, error) {
	cfg.ApplyDefaults()
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{cfg.Method}),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(cfg.Issuer))
	}
	for _, aud := range cfg.Audience {
		opts = append(opts, gojwt.WithAudience(aud))
	}
	return &Validator{cfg: cfg, parser: gojwt.NewParser(opts...)}, nil
}

// Parse verifies token and returns its claims. Failures are
// UNAUTHORIZED, TOKEN_EXPIRED or INVALID_TOKEN AppErrors.
func (v *Validator) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("missing bearer token")
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(v.cfg.Secret), nil
	})
	switch {
	case err == nil:
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, apperrors.TokenExpired()
	default:
		return nil, apperrors.InvalidToken().WithCause(err)
	}
	if claims.Subject == "" {
		return nil, apperrors.InvalidToken().WithDetail("reason", "token has no subject")
	}
	return claims, nil
}

// Issue mints a token for subject. intentctl uses it to sign requests.
func (v *Validator) Issue(subject string, scopes ...string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(v.cfg.TokenTTL)),
		},
		Scopes: scopes,
	}
	if len(v.cfg.Audience) > 0 {
		claims.Audience = v.cfg.Audience
	}
	s, err := gojwt.NewWithClaims(v.cfg.signingMethod(), claims).SignedString([]byte(v.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return s, nil
}

type claimsKey struct{}

// ContextWithClaims stores claims in ctx.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by ContextWithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
