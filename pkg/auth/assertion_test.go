package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quantumdmn/dmn-go/pkg/auth"
)

func TestAssertionBuilder_claims(t *testing.T) {
	creds := testCredentials(t, "https://auth.example.com", "")
	clk := newClock()
	b := auth.NewAssertionBuilder(creds, clk.Now)

	signed, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(signed, &claims,
		func(tok *jwt.Token) (any, error) { return &creds.PrivateKey.PublicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("user-1"),
		jwt.WithSubject("user-1"),
		jwt.WithAudience("https://auth.example.com"),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		t.Fatalf("verify assertion: %v", err)
	}
	if kid := token.Header["kid"]; kid != "key-1" {
		t.Errorf("kid: got %v, want key-1", kid)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("exp - iat: got %v, want 1h", got)
	}
	if !claims.IssuedAt.Equal(clk.Now()) {
		t.Errorf("iat: got %v, want %v", claims.IssuedAt.Time, clk.Now())
	}
	if claims.ID == "" {
		t.Error("jti missing")
	}
}

func TestAssertionBuilder_distinctJTI(t *testing.T) {
	b := auth.NewAssertionBuilder(testCredentials(t, "https://auth.example.com", ""), nil)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		signed, err := b.Build()
		if err != nil {
			t.Fatal(err)
		}
		var claims jwt.RegisteredClaims
		if _, _, err := jwt.NewParser().ParseUnverified(signed, &claims); err != nil {
			t.Fatal(err)
		}
		if seen[claims.ID] {
			t.Fatalf("jti %s reused", claims.ID)
		}
		seen[claims.ID] = true
	}
}
