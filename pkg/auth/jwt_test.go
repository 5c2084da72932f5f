package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator_RoundTrip(t *testing.T) {
	v, err := NewJWTValidator("secret", "nodestand")
	require.NoError(t, err)

	token, err := v.GenerateToken("alice", time.Minute)
	require.NoError(t, err)

	claims, err := v.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
}

func TestJWTValidator_Rejects(t *testing.T) {
	v, err := NewJWTValidator("secret", "nodestand")
	require.NoError(t, err)

	_, err = v.ValidateToken("")
	assert.True(t, errors.Is(err, ErrMissingToken))

	expired, err := v.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.True(t, errors.Is(err, ErrExpiredToken))

	other, err := NewJWTValidator("other-secret", "nodestand")
	require.NoError(t, err)
	forged, err := other.GenerateToken("alice", time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(forged)
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	foreign, err := NewJWTValidator("secret", "someone-else")
	require.NoError(t, err)
	wrongIssuer, err := foreign.GenerateToken("alice", time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(wrongIssuer)
	assert.True(t, errors.Is(err, ErrInvalidClaims))

	_, err = NewJWTValidator("", "")
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "bob"})
	u, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.UserID)
}
