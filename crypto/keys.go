package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	k, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: k}, nil
}

// PrivKeyFromHex decodes a hex-encoded private key, with or without 0x.
func PrivKeyFromHex(s string) (*PrivateKey, error) {
	k, err := ethcrypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// PrivKeyFromBytes decodes a raw 32-byte private key.
func PrivKeyFromBytes(b []byte) (*PrivateKey, error) {
	k, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// Address returns the 20-byte account address of the key.
func (p *PrivateKey) Address() common.Address {
	return ethcrypto.PubkeyToAddress(p.key.PublicKey)
}

// Bytes returns the raw 32-byte private key (handle with care).
func (p *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(p.key)
}

// Hex returns the hex-encoded private key without 0x.
func (p *PrivateKey) Hex() string {
	return common.Bytes2Hex(p.Bytes())
}

// ParseAddress decodes a hex address and rejects malformed input.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
