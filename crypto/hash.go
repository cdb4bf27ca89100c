package crypto

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Hash returns the Keccak-256 hash of data as a lowercase hex string
// without the 0x prefix.
func Hash(data []byte) string {
	return hex.EncodeToString(ethcrypto.Keccak256(data))
}

// HashBytes returns the raw Keccak-256 bytes of data.
func HashBytes(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

// Keccak returns the Keccak-256 hash of data as a common.Hash.
func Keccak(data ...[]byte) common.Hash {
	return ethcrypto.Keccak256Hash(data...)
}
