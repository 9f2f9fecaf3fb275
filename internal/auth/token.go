package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a relay session token.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the HS256 session tokens handed to the
// frontend after the OAuth callback.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer signing with secret; tokens expire
// after ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Mint returns a signed session token for id.
func (t *TokenIssuer) Mint(id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: id.Username,
		Email:    id.Email,
		Avatar:   id.Avatar,
		Provider: string(id.Provider),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning the identity
// it carries.
func (t *TokenIssuer) Verify(token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid session token: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid session token")
	}

	return Identity{
		ID:       claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Avatar:   claims.Avatar,
		Provider: Provider(claims.Provider),
	}, nil
}
