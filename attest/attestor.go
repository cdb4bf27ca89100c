package attest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tolelom/triviachain/crypto"
)

// Attestor signs claims with the backend key. The grading service uses it to
// hand players the signatures their transactions carry.
type Attestor struct {
	key *crypto.PrivateKey
}

// NewAttestor wraps key.
func NewAttestor(key *crypto.PrivateKey) *Attestor {
	return &Attestor{key: key}
}

// Address is the signer address to configure as the backend signer.
func (a *Attestor) Address() common.Address { return a.key.Address() }

// SignJoin admits player to gameID under handle.
func (a *Attestor) SignJoin(player common.Address, handle string, gameID uint64) (string, error) {
	d, err := JoinDigest(player, handle, gameID)
	if err != nil {
		return "", err
	}
	return a.sign(d)
}

// SignCreate vouches for an unresolved creator handle on the game that will
// be numbered nextGameID.
func (a *Attestor) SignCreate(creator common.Address, handle string, nextGameID uint64) (string, error) {
	d, err := CreateDigest(creator, handle, nextGameID)
	if err != nil {
		return "", err
	}
	return a.sign(d)
}

// SignAnswers attests that player scored score on stage with answerHashes.
func (a *Attestor) SignAnswers(gameID uint64, player common.Address, stage, score uint8, answerHashes []common.Hash) (string, error) {
	d, err := AnswersDigest(gameID, player, stage, score, answerHashes)
	if err != nil {
		return "", err
	}
	return a.sign(d)
}

func (a *Attestor) sign(digest common.Hash) (string, error) {
	sig, err := crypto.SignPersonal(a.key, digest.Bytes())
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}
