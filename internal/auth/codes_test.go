package auth

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateResetCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateResetCode()
		require.NoError(t, err)
		assert.Len(t, code, 8)
		_, err = hex.DecodeString(code)
		require.NoError(t, err)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45, "codes should be random")
}

func TestGenerateSessionToken(t *testing.T) {
	token, hash, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, token, 43) // 32 bytes, unpadded base64url
	assert.Len(t, hash, 64)  // sha256 hex
	assert.Equal(t, HashSessionToken(token), hash)
	assert.NotContains(t, token, hash)

	other, otherHash, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
	assert.NotEqual(t, hash, otherHash)
}

func TestHashSessionTokenDeterministic(t *testing.T) {
	assert.Equal(t, HashSessionToken("abc"), HashSessionToken("abc"))
	assert.NotEqual(t, HashSessionToken("abc"), HashSessionToken("abd"))
}
