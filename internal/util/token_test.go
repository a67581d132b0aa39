package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/config"
)

func newTestTokenManager() *TokenManager {
	cfg := &config.Config{}
	cfg.Auth.AccessTokenSecret = "access-secret"
	cfg.Auth.RefreshTokenSecret = "refresh-secret"
	return NewTokenManager(cfg)
}

func TestCreateTokensRoundTrip(t *testing.T) {
	tm := newTestTokenManager()
	msg := &JWTMessage{UserID: 7, Username: "ada", RolePlatform: model.RoleAdmin}

	access, refresh, err := tm.CreateTokens(msg)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	got, err := tm.CheckToken(access)
	require.NoError(t, err)
	assert.Equal(t, *msg, got)

	got, err = tm.CheckRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, *msg, got)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	tm := newTestTokenManager()

	access, refresh, err := tm.CreateTokens(&JWTMessage{UserID: 7, Username: "ada"})
	require.NoError(t, err)

	// An access token must not pass as a refresh token, nor the reverse.
	_, err = tm.CheckRefreshToken(access)
	assert.Error(t, err)
	_, err = tm.CheckToken(refresh)
	assert.Error(t, err)
}

func TestTokenManagerFallsBackToAccessSecret(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.AccessTokenSecret = "only-secret"
	tm := NewTokenManager(cfg)

	_, refresh, err := tm.CreateTokens(&JWTMessage{UserID: 7, Username: "ada"})
	require.NoError(t, err)

	_, err = tm.CheckRefreshToken(refresh)
	assert.NoError(t, err)
}
