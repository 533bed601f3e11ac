package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusalink-net/crm-api/internal/auth"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse-battery")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct-horse-battery", hash)

	assert.True(t, auth.VerifyPassword(hash, "correct-horse-battery"))
	assert.False(t, auth.VerifyPassword(hash, "wrong-password"))
	assert.False(t, auth.VerifyPassword("not-a-bcrypt-hash", "correct-horse-battery"))
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	first, err := auth.HashPassword("same-password")
	require.NoError(t, err)
	second, err := auth.HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, auth.VerifyPassword(first, "same-password"))
	assert.True(t, auth.VerifyPassword(second, "same-password"))
}
