package attest

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tolelom/triviachain/crypto"
)

// Verifier decides whether sig over digest was produced by signer.
type Verifier interface {
	Verify(signer common.Address, digest common.Hash, sig []byte) bool
}

// SignatureVerifier checks wallet-style signatures: the signer signs the
// EIP-191 personal hash of the 32-byte digest.
type SignatureVerifier struct{}

func (SignatureVerifier) Verify(signer common.Address, digest common.Hash, sig []byte) bool {
	if signer == (common.Address{}) {
		return false
	}
	got, err := crypto.RecoverPersonal(digest.Bytes(), sig)
	return err == nil && got == signer
}

// Static is a Verifier that always answers with its own value.
type Static bool

func (s Static) Verify(common.Address, common.Hash, []byte) bool { return bool(s) }

// DecodeSignature parses a hex signature with or without 0x.
func DecodeSignature(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return sig, nil
}
