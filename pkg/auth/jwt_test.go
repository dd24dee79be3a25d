package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	v, err := NewValidator("secret", "panel-reactflow")
	require.NoError(t, err)
	other, err := NewValidator("other", "panel-reactflow")
	require.NoError(t, err)

	good, err := v.Generate("u1", []string{"g1"}, time.Hour)
	require.NoError(t, err)
	expired, err := v.Generate("u1", nil, -time.Minute)
	require.NoError(t, err)
	foreign, err := other.Generate("u1", nil, time.Hour)
	require.NoError(t, err)
	noUser, err := v.Generate("", nil, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: good},
		{name: "bearer prefix", token: "Bearer " + good},
		{name: "missing", token: "  ", wantErr: ErrMissingToken},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "wrong secret", token: foreign, wantErr: ErrInvalidToken},
		{name: "alg none", token: none, wantErr: ErrInvalidToken},
		{name: "no subject", token: noUser, wantErr: ErrInvalidClaims},
		{name: "garbage", token: "abc.def", wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Validate(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.UserID)
		})
	}
}

func TestIssuerIsChecked(t *testing.T) {
	issuerA, _ := NewValidator("secret", "a")
	issuerB, _ := NewValidator("secret", "b")
	token, err := issuerA.Generate("u1", nil, time.Hour)
	require.NoError(t, err)

	_, err = issuerB.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCanAccess(t *testing.T) {
	assert.True(t, (&Claims{}).CanAccess("g1"))
	assert.True(t, (&Claims{Graphs: []string{"g1"}}).CanAccess("g1"))
	assert.False(t, (&Claims{Graphs: []string{"g1"}}).CanAccess("g2"))
	assert.True(t, (&Claims{Graphs: []string{"*"}}).CanAccess("g2"))
}

func TestClaimsContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{UserID: "u1"})
	c, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", c.UserID)
}

func TestNewValidatorNeedsSecret(t *testing.T) {
	_, err := NewValidator("", "")
	assert.Error(t, err)
}
