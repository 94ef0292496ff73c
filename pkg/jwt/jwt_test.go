package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)

	userID := uuid.New()
	tokenString, err := manager.GenerateAccessToken(userID, "Dr. Chen", "doctor")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.ValidateToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Dr. Chen", claims.DisplayName)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Contains(t, claims.Audience, Audience)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)
	other := NewJWTManager("other-secret", 15*time.Minute, 30*24*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), "Alice", "patient")
	require.NoError(t, err)

	_, err = other.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", -1*time.Minute, 30*24*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), "Alice", "patient")
	require.NoError(t, err)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
	assert.True(t, IsTokenExpired(tokenString))
}

func TestExtractUserID(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)

	userID := uuid.New()
	tokenString, err := manager.GenerateAccessToken(userID, "Alice", "patient")
	require.NoError(t, err)

	extracted, err := manager.ExtractUserID(tokenString)
	require.NoError(t, err)
	assert.Equal(t, userID, extracted)
}

func TestRefreshTokenHasNoAudience(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)

	tokenString, err := manager.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	// Refresh tokens are not valid against the API audience
	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}
