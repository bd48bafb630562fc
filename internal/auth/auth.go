package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
	OrgID  string
}

type contextKey struct{}

var identityKey = contextKey{}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 bearer token and returns the caller identity.
func ParseToken(tokenString, secret string) (Identity, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid || c.Subject == "" {
		return Identity{}, fmt.Errorf("invalid token")
	}
	role := c.Role
	if role == "" {
		role = models.RoleStandard
	}
	return Identity{UserID: c.Subject, Email: c.Email, Name: c.Name, Role: role, OrgID: c.OrgID}, nil
}

// SignToken issues an HS256 token for an identity. Used by tests and the
// invite acceptance flow.
func SignToken(id Identity, secret string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		OrgID: id.OrgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: id.UserID,
		},
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// identity on the request context.
func Middleware(secret string, onReject func(w http.ResponseWriter, status int, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				onReject(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			id, err := ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				onReject(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
