package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAccessToken_Claims(t *testing.T) {
	token, err := GenerateAccessToken("test-secret", "user-123", "ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.TokenType != "access" {
		t.Errorf("expected token type %q, got %q", "access", claims.TokenType)
	}
	if claims.UserID != "user-123" || claims.Subject != "user-123" {
		t.Errorf("expected user-123, got userId=%q sub=%q", claims.UserID, claims.Subject)
	}
	if claims.Email != "ana@example.com" {
		t.Errorf("expected email claim, got %q", claims.Email)
	}
	if claims.Issuer != Issuer {
		t.Errorf("expected issuer %q, got %q", Issuer, claims.Issuer)
	}
}

func TestGenerateRefreshToken_Claims(t *testing.T) {
	token, err := GenerateRefreshToken("test-secret", "user-123", "ana@example.com", "token-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.TokenType != "refresh" {
		t.Errorf("expected token type %q, got %q", "refresh", claims.TokenType)
	}
	if claims.TokenID != "token-abc" {
		t.Errorf("expected token id token-abc, got %q", claims.TokenID)
	}
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	if _, err := GenerateAccessToken("", "user-123", ""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _ := GenerateAccessToken("secret-one", "user-123", "")

	if _, err := ValidateToken("secret-two", token); err == nil {
		t.Error("expected error for wrong secret, got nil")
	}
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	claims := &Claims{
		UserID:    "user-123",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("unexpected error signing token: %v", err)
	}

	if _, err := ValidateToken("test-secret", signed); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestValidateToken_ForeignIssuer(t *testing.T) {
	claims := &Claims{
		UserID:    "user-123",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	if _, err := ValidateToken("test-secret", signed); err == nil {
		t.Error("expected error for foreign issuer")
	}
}

func TestValidateToken_InvalidString(t *testing.T) {
	if _, err := ValidateToken("test-secret", "not-a-valid-jwt"); err == nil {
		t.Error("expected error for invalid token string, got nil")
	}
}

func TestTokenDurations(t *testing.T) {
	access, _ := GenerateAccessToken("test-secret", "user-123", "")
	refresh, _ := GenerateRefreshToken("test-secret", "user-123", "", "tid")

	for _, tc := range []struct {
		token string
		want  time.Duration
	}{
		{access, AccessTokenDuration},
		{refresh, RefreshTokenDuration},
	} {
		claims, err := ValidateToken("test-secret", tc.token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := time.Now().Add(tc.want)
		if delta := expected.Sub(claims.ExpiresAt.Time).Abs(); delta > 2*time.Second {
			t.Errorf("expiry off by %v for duration %v", delta, tc.want)
		}
	}
}

func TestValidateToken_RejectsNonHMACSigning(t *testing.T) {
	claims := &Claims{
		UserID:    "user-123",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error signing token: %v", err)
	}

	if _, err := ValidateToken("test-secret", signed); err == nil {
		t.Error("expected error for non-HMAC signing method, got nil")
	}
}
