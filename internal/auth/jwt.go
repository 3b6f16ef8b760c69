// Package auth inspects the access tokens issued by the repository API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// Claims are the fields the portal reads from an access token
type Claims struct {
	UserID   domain.ID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

// User returns the identity carried by the claims
func (c *Claims) User() *domain.User {
	return &domain.User{
		ID:       c.UserID,
		Username: c.Username,
		Email:    c.Email,
		Role:     c.Role,
	}
}

// TokenInspector reads access tokens. With a shared secret the signature
// is verified; without one the claims are only decoded, which is enough
// to decide what to show since the API checks the token on every call.
type TokenInspector struct {
	secret []byte
	now    func() time.Time
}

// NewTokenInspector creates an inspector. An empty secret disables
// signature verification.
func NewTokenInspector(secret string) *TokenInspector {
	return &TokenInspector{secret: []byte(secret), now: time.Now}
}

// Verifies reports whether signatures are checked
func (m *TokenInspector) Verifies() bool {
	return len(m.secret) > 0
}

// Inspect validates a token and returns its claims
func (m *TokenInspector) Inspect(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, domain.ErrInvalidToken
	}

	if !m.Verifies() {
		return m.inspectUnverified(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenInspector) inspectUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !m.now().Before(claims.ExpiresAt.Time) {
		return nil, domain.ErrExpiredToken
	}
	return claims, nil
}

// Sign issues an HS256 token for the given identity. The portal itself
// never issues tokens for the API; this is used by local tooling and tests.
func (m *TokenInspector) Sign(user *domain.User, ttl time.Duration) (string, time.Time, error) {
	if !m.Verifies() {
		return "", time.Time{}, errors.New("no signing secret configured")
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}
