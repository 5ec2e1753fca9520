// Package auth resolves the calling user from HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret is returned when tokens are presented but no secret is configured.
var ErrNoSecret = errors.New("JWT secret is not configured")

// Verifier validates access tokens signed with a shared secret
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier. An empty secret disables token auth.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// UserID verifies the token and returns its subject.
func (v *Verifier) UserID(tokenString string) (string, error) {
	if !v.Enabled() {
		return "", ErrNoSecret
	}
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to verify token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("no sub claim in token")
	}
	return sub, nil
}

// ValidateToken is the middleware-friendly form of UserID.
func (v *Verifier) ValidateToken(authHeader string) (string, bool) {
	if authHeader == "" {
		return "", false
	}
	userID, err := v.UserID(authHeader)
	if err != nil {
		return "", false
	}
	return userID, true
}

// Sign issues a token for userID. Used by the CLI and tests.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
