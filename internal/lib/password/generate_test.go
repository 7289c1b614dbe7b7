package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LengthAndCharset(t *testing.T) {
	for range 200 {
		p, err := New()
		require.NoError(t, err)
		require.Len(t, p, DefaultLength)
		for _, r := range p {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected rune %q in %q", r, p)
		}
	}
}

func TestGenerate_InvalidLength(t *testing.T) {
	_, err := Generate(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password.Generate")
}

func TestGenerate_NotConstant(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		p, err := Generate(16)
		require.NoError(t, err)
		seen[p] = struct{}{}
	}
	assert.Greater(t, len(seen), 45)
}
