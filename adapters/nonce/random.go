// Package nonce generates wallet login challenges.
package nonce

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/layer-3/bazaar/ports"
)

// Size is the number of random bytes in a nonce (256 bits).
const Size = 32

// RandomGenerator implements NonceGenerator with crypto/rand.
type RandomGenerator struct{}

// NewRandomGenerator creates a new generator
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

var _ ports.NonceGenerator = (*RandomGenerator)(nil)

// Generate returns Size random bytes as lowercase hex.
func (g *RandomGenerator) Generate() (string, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
