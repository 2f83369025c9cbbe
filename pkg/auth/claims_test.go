package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaims_TenantID(t *testing.T) {
	tests := []struct {
		subject string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"9007199254740993", 9007199254740993, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: tt.subject}}
			got, err := c.TenantID()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTenant))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetClaims(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}}
	ctx := context.WithValue(context.Background(), ClaimsKey, claims)

	got, ok := GetClaims(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)

	_, ok = GetClaims(context.Background())
	assert.False(t, ok)

	_, ok = GetClaims(context.WithValue(context.Background(), ClaimsKey, "not-claims"))
	assert.False(t, ok)
}

func TestUserIDFromContext(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	assert.Error(t, err)

	ctx := context.WithValue(context.Background(), ClaimsKey, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "12"}})
	id, err := UserIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
}
