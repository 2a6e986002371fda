// Package auth validates bearer tokens minted elsewhere and resolves
// them to a models.User. Credential issuance is explicitly out of
// scope per spec.md §1; this package only covers the validating half
// of the teacher's internal/auth/jwt.go, since the teacher's own
// Generate is no longer reachable from anything in this repo once
// issuance is dropped — kept here anyway as a thin wrapper so a future
// admin CLI has somewhere to mint tokens without duplicating the
// claims shape.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ErrAuthDisabled is returned when a JWTService was built with an
// empty secret (auth not configured).
var ErrAuthDisabled = errors.New("auth: disabled (no signing secret configured)")

// ErrInvalidToken is returned for any token that fails parsing,
// signature verification, expiry, or is missing a subject claim.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// JWTService validates (and, for operator tooling, issues) HS256
// bearer tokens carrying a user identity.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService builds a JWTService from a signing secret and token
// expiry (0 means tokens never expire).
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), expiry: expiry}
}

// Enabled reports whether a signing secret was configured.
func (s *JWTService) Enabled() bool { return s != nil && len(s.secret) > 0 }

// claims is the token payload: just enough to resolve a models.User
// without a store round trip on every request.
type claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a signed token for user. Exposed for an operator CLI
// to mint tokens out-of-band; no HTTP handler in this repo calls it.
func (s *JWTService) Generate(user *models.User) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", errors.New("auth: user id required")
	}

	c := claims{
		Email: strings.TrimSpace(user.Email),
		Name:  strings.TrimSpace(user.Name),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if s.expiry > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.secret)
}

// Validate parses and verifies a bearer token, returning the user
// identity embedded in its claims.
func (s *JWTService) Validate(token string) (*models.User, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || strings.TrimSpace(c.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return &models.User{
		ID:    c.Subject,
		Email: strings.TrimSpace(c.Email),
		Name:  strings.TrimSpace(c.Name),
	}, nil
}
