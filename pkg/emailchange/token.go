package emailchange

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	selectorBytes = 20
	tokenBytes    = 32
)

// TokenComponents holds a freshly minted selector/token pair.
// Token is the plaintext secret and must only ever leave the process inside the signed URL.
type TokenComponents struct {
	Selector    string
	Token       string
	HashedToken string
}

// TokenGenerator mints and verifies selector/token pairs.
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// CreateToken generates an independent random selector and token and hashes the token
func (g *TokenGenerator) CreateToken() (TokenComponents, error) {
	selector, err := randomHex(selectorBytes)
	if err != nil {
		return TokenComponents{}, fmt.Errorf("failed to generate selector: %w", err)
	}

	token, err := randomHex(tokenBytes)
	if err != nil {
		return TokenComponents{}, fmt.Errorf("failed to generate token: %w", err)
	}

	return TokenComponents{
		Selector:    selector,
		Token:       token,
		HashedToken: g.HashToken(token),
	}, nil
}

// HashToken returns the lowercase hex SHA-256 of the token
func (g *TokenGenerator) HashToken(token string) string {
	return hashHex(token)
}

// VerifyToken reports whether token hashes to hashedToken, in constant time.
func (g *TokenGenerator) VerifyToken(hashedToken, token string) bool {
	return constantTimeEqual(hashedToken, g.HashToken(token))
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashHex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
