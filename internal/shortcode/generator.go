package shortcode

import (
	"crypto/rand"
	"errors"
	"math"
	"math/big"
)

// DefaultAlphabet excludes ambiguous characters: 0, O, I, l, 1
const DefaultAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// DefaultLength is the number of characters in a generated alias.
const DefaultLength = 8

// Generator generates random short codes.
// It never checks for collisions; callers retry on conflict.
type Generator struct {
	alphabet string
	length   int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLength sets the code length. Values below 1 are ignored.
func WithLength(n int) Option {
	return func(g *Generator) {
		if n >= 1 {
			g.length = n
		}
	}
}

// WithAlphabet sets the characters codes are drawn from.
// Alphabets rejected by CheckAlphabet are ignored.
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) {
		if CheckAlphabet(alphabet) == nil {
			g.alphabet = alphabet
		}
	}
}

// NewGenerator creates a new short code generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		alphabet: DefaultAlphabet,
		length:   DefaultLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate creates a new random short code using crypto/rand.
func (g *Generator) Generate() string {
	b := make([]byte, g.length)
	alphabetLen := big.NewInt(int64(len(g.alphabet)))

	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// Fallback should never happen with crypto/rand
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = g.alphabet[n.Int64()]
	}

	return string(b)
}

// Length returns the number of characters per code.
func (g *Generator) Length() int {
	return g.length
}

// Capacity returns the number of distinct codes, saturating at math.MaxUint64.
func (g *Generator) Capacity() uint64 {
	total := uint64(1)
	base := uint64(len(g.alphabet))
	for i := 0; i < g.length; i++ {
		if total > math.MaxUint64/base {
			return math.MaxUint64
		}
		total *= base
	}
	return total
}

// IsURLSafe reports whether c may appear in an alias: [A-Za-z0-9_-].
func IsURLSafe(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '_'
}

// CheckAlphabet reports why alphabet cannot be used to generate aliases.
// Generated aliases are routed as a single path segment, so every symbol
// must be URL safe.
func CheckAlphabet(alphabet string) error {
	if len(alphabet) < 2 {
		return errors.New("needs at least 2 symbols")
	}
	var seen [256]bool
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if !IsURLSafe(c) {
			return errors.New("may only contain letters, digits, '-' and '_'")
		}
		if seen[c] {
			return errors.New("has repeated symbols")
		}
		seen[c] = true
	}
	return nil
}
