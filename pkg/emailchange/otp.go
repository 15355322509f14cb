package emailchange

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultOtpLength = 6
	MinOtpLength     = 4
	MaxOtpLength     = 10
)

// OtpResult is returned when a one-time code is issued.
type OtpResult struct {
	Code      string
	ExpiresAt time.Time
}

// OtpGenerator issues numeric one-time codes of a fixed length.
type OtpGenerator struct {
	length int
	min    *big.Int
	span   *big.Int
}

// NewOtpGenerator creates a generator for codes of the given length (4 to 10 digits)
func NewOtpGenerator(length int) (*OtpGenerator, error) {
	if length < MinOtpLength || length > MaxOtpLength {
		return nil, fmt.Errorf("otp length must be between %d and %d, got %d", MinOtpLength, MaxOtpLength, length)
	}

	lower := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	return &OtpGenerator{
		length: length,
		min:    lower,
		span:   new(big.Int).Sub(upper, lower),
	}, nil
}

// Length returns the number of digits in generated codes
func (g *OtpGenerator) Length() int {
	return g.length
}

// Generate returns a code drawn uniformly from [10^(n-1), 10^n - 1], so it never starts with 0.
func (g *OtpGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.span)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return n.Add(n, g.min).String(), nil
}

// Hash returns the lowercase hex SHA-256 of the code
func (g *OtpGenerator) Hash(code string) string {
	return hashHex(code)
}

// Verify compares the code against a stored hash in constant time
func (g *OtpGenerator) Verify(code, hashedCode string) bool {
	return constantTimeEqual(hashedCode, g.Hash(code))
}
