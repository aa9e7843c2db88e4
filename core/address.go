package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex wallet address and returns its canonical
// lowercase 0x-prefixed form. Checksum casing carries no meaning here.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("wallet address %q: %w", address, ErrValidation)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
