package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// small cost keeps the suite fast
const testN = 1 << 10

func TestPasswordRoundTrip(t *testing.T) {
	hash, salt, err := HashPassword("s3cret", testN)
	require.NoError(t, err)
	assert.Len(t, salt, saltLen*2)

	assert.True(t, VerifyPassword(hash, salt, "s3cret", testN))
	assert.False(t, VerifyPassword(hash, salt, "wrong", testN))
	assert.False(t, VerifyPassword(hash, "zz", "s3cret", testN))

	hash2, salt2, err := HashPassword("s3cret", testN)
	require.NoError(t, err)
	assert.NotEqual(t, salt, salt2)
	assert.NotEqual(t, hash, hash2)
}

func TestAccessTokenClaims(t *testing.T) {
	shop := int64(3)
	tok, err := NewAccessToken("k", "olga", "OWNER", &shop, 5)
	require.NoError(t, err)

	claims, err := ParseAccessToken("k", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "olga", claims.Subject)
	assert.Equal(t, "OWNER", claims.Role)
	require.NotNil(t, claims.ShopID)
	assert.Equal(t, int64(3), *claims.ShopID)
	assert.NotEmpty(t, claims.ID)

	_, err = ParseAccessToken("other-key", tok.Token)
	assert.Error(t, err)
}

func TestExpiredAccessTokenIsRejected(t *testing.T) {
	tok, err := NewAccessToken("k", "carl", "CUSTOMER", nil, -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("k", tok.Token)
	assert.Error(t, err)
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(1)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.NotEqual(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw+"x"))
}

func TestAccessTokenWithoutRoleIsRejected(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "nobody",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = ParseAccessToken("k", raw)
	assert.ErrorIs(t, err, ErrClaims)
}
