package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	rawKey, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rawKey, Prefix))

	secret := Secret(rawKey)
	assert.Len(t, secret, secretLength)

	for _, r := range secret {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rawKey, err := Generate()
		require.NoError(t, err)
		assert.False(t, seen[rawKey], "duplicate key generated")
		seen[rawKey] = true
	}
}

func TestSecretStripsPrefix(t *testing.T) {
	assert.Equal(t, "abc123", Secret("209w_abc123"))

	// Keys without the prefix pass through unchanged.
	assert.Equal(t, "abc123", Secret("abc123"))
}

func TestSHA256HasherDeterministic(t *testing.T) {
	hasher := SHA256Hasher{}

	h1 := hasher.Hash("some-secret")
	h2 := hasher.Hash("some-secret")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, hasher.Hash("other-secret"))
}

func TestGenerateSecretPrefix(t *testing.T) {
	secret, err := GenerateSecret("whsec_")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret, "whsec_"))
	assert.Len(t, secret, len("whsec_")+secretLength)
}
