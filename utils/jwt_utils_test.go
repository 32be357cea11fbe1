package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-that-is-long-enough")

	token, err := GenerateAuthToken("6748e4341aeb312f7f0c3b12", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "6748e4341aeb312f7f0c3b12", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "first-secret-that-is-long-enough")
	token, err := GenerateAuthToken("6748e4341aeb312f7f0c3b12", "alice")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "other-secret-that-is-long-enough")
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-that-is-long-enough")
	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}
