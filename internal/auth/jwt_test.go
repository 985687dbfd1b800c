package auth

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signClaims signs arbitrary claims with secret, bypassing GenerateToken's defaults.
func signClaims(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, time.Hour, 7, "ana@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	id, err := claims.AccountID()
	if err != nil || id != 7 {
		t.Errorf("expected account 7, got %d (%v)", id, err)
	}
	if claims.Email != "ana@example.com" {
		t.Errorf("expected email, got %q", claims.Email)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}

	delta := claims.ExpiresAt.Sub(time.Now().Add(time.Hour))
	if delta > time.Minute || delta < -time.Minute {
		t.Errorf("expiry off by %v", delta)
	}
}

func TestTokensHaveUniqueIDs(t *testing.T) {
	a, _ := GenerateToken("s", time.Hour, 1, "a@example.com")
	b, _ := GenerateToken("s", time.Hour, 1, "a@example.com")
	ca, _ := ValidateToken("s", a)
	cb, _ := ValidateToken("s", b)
	if ca.ID == cb.ID {
		t.Error("expected distinct token ids")
	}
}

func TestDefaultTTL(t *testing.T) {
	token, _ := GenerateToken("s", 0, 1, "a@example.com")
	claims, err := ValidateToken("s", token)
	if err != nil {
		t.Fatal(err)
	}
	delta := claims.ExpiresAt.Sub(time.Now().Add(DefaultTokenTTL))
	if delta > time.Minute || delta < -time.Minute {
		t.Errorf("expected default ttl, off by %v", delta)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	good, _ := GenerateToken("secret1", time.Hour, 1, "a@example.com")
	now := time.Now()
	expired := signClaims(t, "secret1", Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "expired-jti",
		Subject:   strconv.Itoa(1),
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	}})
	noExpiry := signClaims(t, "secret1", Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:      "no-expiry-jti",
		Subject: "1",
	}})
	noID := signClaims(t, "secret1", Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}})

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "secret2", good},
		{"garbage", "secret1", "not-a-token"},
		{"expired", "secret1", expired},
		{"no expiry", "secret1", noExpiry},
		{"no id", "secret1", noID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.secret, tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
