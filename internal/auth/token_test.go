package auth_test

import (
	"testing"
	"time"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-of-decent-length", time.Hour)

	token, err := tm.GenerateSessionToken("user-1", "alice", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-of-decent-length", -time.Minute)

	token, err := tm.GenerateSessionToken("user-1", "alice", "user")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-of-decent-length", time.Hour)
	other := auth.NewTokenManager("a-different-secret-entirely", time.Hour)

	token, err := tm.GenerateSessionToken("user-1", "alice", "user")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := auth.NewTokenManager("test-secret-of-decent-length", time.Hour)

	_, err := tm.ValidateToken("not-a-token")
	assert.Error(t, err)
}
