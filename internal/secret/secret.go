// Package secret generates display passwords from a fixed alphabet using a
// cryptographically secure source.
package secret

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/raysh454/cyra/internal/analyzer"
)

const (
	MinLength     = 8
	MaxLength     = 64
	DefaultLength = 16

	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()_+"
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a string of exactly length characters, each drawn
// independently and uniformly from Alphabet. Lengths outside
// [MinLength, MaxLength] return an error wrapping analyzer.ErrValidation.
func Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("%w: secret length %d outside [%d,%d]", analyzer.ErrValidation, length, MinLength, MaxLength)
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// ClampLength forces n into [MinLength, MaxLength], for slider-style input.
func ClampLength(n int) int {
	return min(max(n, MinLength), MaxLength)
}
