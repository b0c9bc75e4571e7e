// Package auth resolves the caller's identity. Tokens are bearer JWTs signed
// by the external identity provider; this package only verifies them and maps
// the subject to an account row, creating the row on first sight.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity fields this service reads from the token. The
// subject is the external account identifier everything is keyed by.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// VerifyToken parses and verifies an HS256 bearer token and returns its
// claims. Any other signing method is rejected.
func VerifyToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("missing token secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
