// Package auth authenticates requests for the costing API. The tenant of a
// request is the numeric user id carried in the JWT subject (or in the signed
// browser session set by the login collaborator).
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// ErrInvalidTenant is returned when the subject is not a positive user id.
var ErrInvalidTenant = errors.New("subject is not a valid user id")

// Claims represents the JWT claims structure. The subject is the tenant's user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// TenantID parses the subject as the tenant's user id.
func (c *Claims) TenantID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTenant, c.Subject)
	}
	return id, nil
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Empty for session-authenticated requests.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// UserIDFromContext returns the authenticated tenant id.
func UserIDFromContext(ctx context.Context) (int64, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return 0, fmt.Errorf("authentication required: no claims in context")
	}
	return claims.TenantID()
}
