package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/db"
	"github.com/kaiwa-app/kaiwa/internal/db/models"
)

type contextKey string

const accountIDKey contextKey = "accountID"

// AccountIDFromContext returns the resolved internal account id for the
// current request.
func AccountIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(accountIDKey).(uint)
	return id, ok
}

// WithAccountID injects an account id into the context. Exported for handler
// tests that bypass the middleware.
func WithAccountID(ctx context.Context, accountID uint) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// Middleware validates the bearer token and resolves the account row for its
// subject, provisioning the row just-in-time on the free plan when the
// subject has never been seen. The resolved internal id lands on the request
// context; downstream code never sees the raw token.
func Middleware(database *gorm.DB, secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w)
				return
			}

			claims, err := VerifyToken(parts[1], secret)
			if err != nil {
				unauthorized(w)
				return
			}

			accountID, err := resolveAccount(database.WithContext(r.Context()), claims)
			if err != nil {
				log.Printf("resolve account for subject %s: %v", claims.Subject, err)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}

// resolveAccount finds or creates the user row for the token subject. Lookup
// and insert share one transaction so two concurrent first requests cannot
// both insert.
func resolveAccount(database *gorm.DB, claims *Claims) (uint, error) {
	var accountID uint
	err := database.Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("auth_id = ?", claims.Subject).First(&user).Error
		if err == nil {
			accountID = user.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		name := claims.Name
		if name == "" {
			name = claims.Email
		}
		user = models.User{
			AuthID: claims.Subject,
			Name:   name,
			Email:  claims.Email,
			PlanID: db.PlanFree,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		log.Printf("provisioned account %d for subject %s", user.ID, claims.Subject)
		accountID = user.ID
		return nil
	})
	return accountID, err
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error": "Invalid authentication token"}`))
}
