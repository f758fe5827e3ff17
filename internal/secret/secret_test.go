package secret_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/secret"
)

func TestAlphabetHas74Symbols(t *testing.T) {
	t.Parallel()
	assert.Len(t, secret.Alphabet, 74)
	seen := map[rune]bool{}
	for _, r := range secret.Alphabet {
		assert.False(t, seen[r], "duplicate %q", r)
		seen[r] = true
	}
}

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	t.Parallel()
	for n := secret.MinLength; n <= secret.MaxLength; n++ {
		s, err := secret.Generate(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(secret.Alphabet, r), "unexpected %q", r)
		}
	}
}

func TestGenerate_OutOfRange(t *testing.T) {
	t.Parallel()
	for _, n := range []int{-1, 0, 7, 65, 1000} {
		s, err := secret.Generate(n)
		assert.Empty(t, s)
		assert.ErrorIs(t, err, analyzer.ErrValidation, "length %d", n)
	}
}

func TestGenerate_NonDeterministic(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := secret.Generate(16)
		require.NoError(t, err)
		assert.False(t, seen[s], "duplicate secret %q", s)
		seen[s] = true
	}
}

func TestGenerate_CoversAlphabet(t *testing.T) {
	t.Parallel()
	// 74 symbols over 20k draws: missing any one has probability ~e^-270.
	counts := map[rune]int{}
	for i := 0; i < 320; i++ {
		s, err := secret.Generate(64)
		require.NoError(t, err)
		for _, r := range s {
			counts[r]++
		}
	}
	assert.Len(t, counts, len(secret.Alphabet))
}

func TestClampLength(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 8, secret.ClampLength(1))
	assert.Equal(t, 8, secret.ClampLength(8))
	assert.Equal(t, 20, secret.ClampLength(20))
	assert.Equal(t, 64, secret.ClampLength(64))
	assert.Equal(t, 64, secret.ClampLength(99))
}
