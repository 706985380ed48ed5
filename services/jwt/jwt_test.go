package jwt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndValidateTokenPair(t *testing.T) {
	userID := uuid.New()

	access, refresh, err := GenerateTokenPair("user@campus.edu", testSecret, userID)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := ValidateAndGetClaims(access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user@campus.edu", claims["email"])
	assert.Equal(t, "access", claims["type"])

	got, err := UserIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	access, _, err := GenerateTokenPair("user@campus.edu", testSecret, uuid.New())
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(access, "another-secret")
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := ValidateAndGetClaims("not-a-token", testSecret)
	assert.Error(t, err)
}

func TestUserIDFromClaimsRejectsBadID(t *testing.T) {
	claims, err := ValidateAndGetClaims(mustToken(t), testSecret)
	require.NoError(t, err)
	claims["id"] = "not-a-uuid"

	_, err = UserIDFromClaims(claims)
	assert.Error(t, err)
}

func mustToken(t *testing.T) string {
	t.Helper()
	access, _, err := GenerateTokenPair("user@campus.edu", testSecret, uuid.New())
	require.NoError(t, err)
	return access
}
