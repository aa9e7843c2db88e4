// Package signature recovers wallet addresses from personal-message signatures.
package signature

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
)

// EthVerifier implements the SignatureVerifier interface for EIP-191
// personal_sign signatures, the format wallets produce for signMessage.
type EthVerifier struct{}

// NewEthVerifier creates a new verifier
func NewEthVerifier() *EthVerifier {
	return &EthVerifier{}
}

var _ ports.SignatureVerifier = (*EthVerifier)(nil)

// RecoverSigner returns the address whose key signed message
func (v *EthVerifier) RecoverSigner(message, signature string) (common.Address, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrSignatureInvalid)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrSignatureInvalid)
	}

	// Wallets emit V as 27/28; recovery expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id: %w", core.ErrSignatureInvalid)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrSignatureInvalid)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
