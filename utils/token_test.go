package utils

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	format := regexp.MustCompile(`^\d{6}$`)

	for i := 0; i < 200; i++ {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		require.True(t, format.MatchString(otp), "got %q", otp)

		n, err := strconv.Atoi(otp)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestGenerateResetToken(t *testing.T) {
	format := regexp.MustCompile(`^[0-9a-f]{64}$`)

	first, err := GenerateResetToken()
	require.NoError(t, err)
	assert.True(t, format.MatchString(first), "got %q", first)

	second, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHashSecret(t *testing.T) {
	hash := HashSecret("123456")

	// SHA-256, hex encoded, deterministic.
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashSecret("123456"))
	assert.NotEqual(t, hash, HashSecret("123457"))
	assert.NotContains(t, hash, "123456")
}

func TestSecureCompare(t *testing.T) {
	a := HashSecret("123456")
	assert.True(t, SecureCompare(a, HashSecret("123456")))
	assert.False(t, SecureCompare(a, HashSecret("654321")))
	assert.False(t, SecureCompare(a, ""))
}
