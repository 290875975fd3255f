package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("secret", 7, "ana", "technician")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "ana" || claims.Role != "technician" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("token has no JTI")
	}
}

func TestUniqueJTIs(t *testing.T) {
	a, _ := GenerateToken("secret", 1, "ana", "technician")
	b, _ := GenerateToken("secret", 1, "ana", "technician")

	ca, _ := ValidateToken("secret", a)
	cb, _ := ValidateToken("secret", b)
	if ca.ID == cb.ID {
		t.Error("two tokens share a JTI")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, _ := GenerateToken("secret", 1, "ana", "technician")
	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Error("token validated with wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   1,
		Username: "ana",
		Role:     "technician",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	_, err = ValidateToken("secret", signed)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry error, got %v", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := ValidateToken("secret", "not.a.token"); err == nil {
		t.Error("garbage token validated")
	}
}
