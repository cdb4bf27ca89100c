package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an R || S || V signature.
const SignatureLength = 65

var errBadRecoveryID = errors.New("invalid signature recovery id")

// Sign signs a 32-byte digest and returns the 65-byte R || S || V signature
// with V in {0, 1}.
func Sign(priv *PrivateKey, digest []byte) ([]byte, error) {
	return ethcrypto.Sign(digest, priv.key)
}

// Recover returns the address that produced sig over digest. V may be in
// {0, 1} or the legacy {27, 28}.
func Recover(digest, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	norm := make([]byte, SignatureLength)
	copy(norm, sig)
	switch norm[64] {
	case 0, 1:
	case 27, 28:
		norm[64] -= 27
	default:
		return common.Address{}, errBadRecoveryID
	}
	pub, err := ethcrypto.SigToPub(digest, norm)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// PersonalHash applies the EIP-191 "Ethereum Signed Message" prefix to data,
// the hash wallets sign for personal_sign.
func PersonalHash(data []byte) []byte {
	return accounts.TextHash(data)
}

// SignPersonal signs data the way a wallet's signMessage does: over the
// prefixed hash, with V in {27, 28}.
func SignPersonal(priv *PrivateKey, data []byte) ([]byte, error) {
	sig, err := Sign(priv, PersonalHash(data))
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// RecoverPersonal is the inverse of SignPersonal.
func RecoverPersonal(data, sig []byte) (common.Address, error) {
	return Recover(PersonalHash(data), sig)
}
