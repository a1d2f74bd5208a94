// Package invite generates short human-friendly group invite codes.
package invite

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	// Letters excludes O and I, digits exclude 0 and 1, so codes can be read
	// back without confusing similar glyphs.
	Letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	Digits  = "23456789"

	// DefaultLength is the code length handed out to users.
	DefaultLength = 8

	minLength = 2
)

const alphabet = Letters + Digits

// ErrInvalidLength is returned when a code shorter than two characters is requested.
var ErrInvalidLength = errors.New("invite code length must be at least 2")

// Generator produces invite codes from a pluggable source of randomness.
type Generator struct {
	intN    func(n int) int
	shuffle func(n int, swap func(i, j int))
}

// NewGenerator returns a Generator backed by the runtime-seeded math/rand/v2 source.
func NewGenerator() *Generator {
	return &Generator{
		intN:    rand.IntN,
		shuffle: rand.Shuffle,
	}
}

// NewGeneratorWithSource returns a Generator drawing from r; useful for deterministic tests.
func NewGeneratorWithSource(r *rand.Rand) *Generator {
	return &Generator{
		intN:    r.IntN,
		shuffle: r.Shuffle,
	}
}

// Generate returns a code of the requested length containing at least one
// letter and one digit, in random order.
func (g *Generator) Generate(length int) (string, error) {
	if length < minLength {
		return "", fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}

	code := make([]byte, 0, length)
	code = append(code, Letters[g.intN(len(Letters))], Digits[g.intN(len(Digits))])
	for len(code) < length {
		code = append(code, alphabet[g.intN(len(alphabet))])
	}

	g.shuffle(len(code), func(i, j int) {
		code[i], code[j] = code[j], code[i]
	})

	return string(code), nil
}

var defaultGenerator = NewGenerator()

// Generate returns a code from the package-level generator.
func Generate(length int) (string, error) {
	return defaultGenerator.Generate(length)
}
