package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyTokenValid(t *testing.T) {
	token := mintToken(t, testSecret, &Claims{
		Name:  "Ada",
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := VerifyToken(token, testSecret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user_123" || claims.Name != "Ada" || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	token := mintToken(t, "other-secret", &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_123"},
	})
	if _, err := VerifyToken(token, testSecret); err == nil {
		t.Fatal("expected verification to fail for a wrong secret")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	token := mintToken(t, testSecret, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	if _, err := VerifyToken(token, testSecret); err == nil {
		t.Fatal("expected verification to fail for an expired token")
	}
}

func TestVerifyTokenRejectsOtherSigningMethods(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_123"},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := VerifyToken(signed, testSecret); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestVerifyTokenRequiresSubject(t *testing.T) {
	token := mintToken(t, testSecret, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "  "},
	})
	if _, err := VerifyToken(token, testSecret); err == nil {
		t.Fatal("expected verification to fail without a subject")
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	if _, err := VerifyToken("not-a-jwt", testSecret); err == nil {
		t.Fatal("expected verification to fail for garbage input")
	}
}
