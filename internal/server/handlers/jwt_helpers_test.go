package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret-key"), AccessTokenTTL: time.Minute}

	token, expiresIn, err := GenerateAccessToken(cfg, "user123", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(60), expiresIn)

	claims, err := ValidateAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret-key"), AccessTokenTTL: time.Minute}
	other := JWTConfig{Secret: []byte("another-secret"), AccessTokenTTL: time.Minute}
	expired := JWTConfig{Secret: cfg.Secret, AccessTokenTTL: -time.Minute}

	foreign, _, err := GenerateAccessToken(other, "user123", "alice")
	require.NoError(t, err)
	stale, _, err := GenerateAccessToken(expired, "user123", "alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAccessToken(cfg, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateAccessToken_Disabled(t *testing.T) {
	_, _, err := GenerateAccessToken(JWTConfig{}, "user123", "alice")
	assert.Error(t, err)
	assert.False(t, JWTConfig{}.Enabled())
}

func TestWithUser(t *testing.T) {
	ctx := WithUser(context.Background(), "user123", "alice")

	userID, ok := GetUserID(ctx)
	require.True(t, ok)
	assert.Equal(t, "user123", userID)

	username, ok := GetUsername(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", username)

	_, ok = GetUserID(context.Background())
	assert.False(t, ok)
}
