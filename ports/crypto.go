package ports

import "github.com/ethereum/go-ethereum/common"

// NonceGenerator produces unpredictable single-use challenges.
type NonceGenerator interface {
	Generate() (string, error)
}

// SignatureVerifier recovers the wallet address that signed a message.
type SignatureVerifier interface {
	RecoverSigner(message, signature string) (common.Address, error)
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash in constant time.
	Verify(password, hash string) bool
}
