package service

import (
	"encoding/hex"
	"task-manager-api/config"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:  "access-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshExpiry: 7 * 24 * time.Hour,
	}
}

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{SingleUseExpiry: 20 * time.Minute}
}

func newTestMinter(t *testing.T) *JWTMinter {
	t.Helper()
	m, err := NewJWTMinter(testJWTConfig(), testTokenConfig())
	require.NoError(t, err)
	return m
}

func TestNewJWTMinter_MissingSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.RefreshSecret = ""

	_, err := NewJWTMinter(cfg, testTokenConfig())
	assert.ErrorIs(t, err, ErrMissingSigningSecret)
}

func TestJWTMinter_AccessToken(t *testing.T) {
	m := newTestMinter(t)

	token, err := m.GenerateAccessToken("u1", "a@x.com", "abc")
	require.NoError(t, err)

	claims, err := m.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "abc", claims.Username)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	_, err = m.ParseRefreshToken(token)
	assert.Error(t, err, "access token must not validate as a refresh token")
}

func TestJWTMinter_RefreshToken(t *testing.T) {
	m := newTestMinter(t)

	token, err := m.GenerateRefreshToken("u1")
	require.NoError(t, err)

	claims, err := m.ParseRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	again, err := m.GenerateRefreshToken("u1")
	require.NoError(t, err)
	assert.NotEqual(t, token, again)
}

func TestJWTMinter_ExpiredToken(t *testing.T) {
	m := newTestMinter(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.GenerateAccessToken("u1", "a@x.com", "abc")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTMinter_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestMinter(t)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"_id": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ParseAccessToken(unsigned)
	assert.Error(t, err)
}

func TestJWTMinter_TemporaryToken(t *testing.T) {
	m := newTestMinter(t)
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	token, err := m.GenerateTemporaryToken()
	require.NoError(t, err)

	raw, err := hex.DecodeString(token.UnhashedToken)
	require.NoError(t, err)
	assert.Len(t, raw, 20)
	assert.Equal(t, HashTemporaryToken(token.UnhashedToken), token.HashedToken)
	assert.NotEqual(t, token.UnhashedToken, token.HashedToken)
	assert.Equal(t, fixed.Add(20*time.Minute), token.Expiry)

	other, err := m.GenerateTemporaryToken()
	require.NoError(t, err)
	assert.NotEqual(t, token.UnhashedToken, other.UnhashedToken)
}
