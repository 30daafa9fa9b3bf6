package refcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	code, err := Generate(DefaultBytes)
	require.NoError(t, err)
	assert.Len(t, code, 12)
	assert.True(t, Valid(code))
	assert.Equal(t, code, Normalize(code))
}

func TestGenerateIsRandom(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		code, err := Generate(0)
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("A1B2C3D4E5F6"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("a1b2c3d4e5f6"))
	assert.False(t, Valid("DOES-NOT-EXIST"))
	assert.False(t, Valid("ABC"))
	assert.False(t, Valid("AAAAAAAAAAAAAAAAAAAAAA"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "A1B2C3", Normalize("  a1b2c3 "))
}
