package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AssertionLifetime is the validity window of every signed assertion.
const AssertionLifetime = time.Hour

// AssertionBuilder signs the RS256 JWT presented to the token endpoint.
type AssertionBuilder struct {
	creds *Credentials
	now   func() time.Time
}

// NewAssertionBuilder returns a builder for creds. now defaults to time.Now.
func NewAssertionBuilder(creds *Credentials, now func() time.Time) *AssertionBuilder {
	if now == nil {
		now = time.Now
	}
	return &AssertionBuilder{creds: creds, now: now}
}

// Build signs a fresh assertion. Each call carries its own jti.
func (b *AssertionBuilder) Build() (string, error) {
	now := b.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    b.creds.UserID,
		Subject:   b.creds.UserID,
		Audience:  jwt.ClaimStrings{b.creds.Issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AssertionLifetime)),
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = b.creds.KeyID
	signed, err := token.SignedString(b.creds.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
