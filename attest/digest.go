// Package attest authenticates claims signed by the trusted off-chain
// backend: join admissions, alternate creator handles and graded answers.
package attest

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/crypto"
)

var (
	joinArgs    abi.Arguments
	answersArgs abi.Arguments
)

func init() {
	address := mustType("address")
	str := mustType("string")
	u256 := mustType("uint256")
	hashes := mustType("bytes32[]")

	joinArgs = abi.Arguments{{Type: address}, {Type: str}, {Type: u256}}
	answersArgs = abi.Arguments{{Type: u256}, {Type: address}, {Type: u256}, {Type: u256}, {Type: hashes}}
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("attest: abi type %s: %v", t, err))
	}
	return typ
}

// JoinDigest is keccak256(abi.encode(player, handle, gameID)).
func JoinDigest(player common.Address, handle string, gameID uint64) (common.Hash, error) {
	packed, err := joinArgs.Pack(player, handle, new(big.Int).SetUint64(gameID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode join claim: %w", err)
	}
	return crypto.Keccak(packed), nil
}

// CreateDigest authenticates an unresolved creator handle. It has the join
// layout with the id the new game will receive.
func CreateDigest(creator common.Address, handle string, nextGameID uint64) (common.Hash, error) {
	return JoinDigest(creator, handle, nextGameID)
}

// AnswersDigest is keccak256(abi.encode(gameID, player, stage, score, answerHashes)).
func AnswersDigest(gameID uint64, player common.Address, stage, score uint8, answerHashes []common.Hash) (common.Hash, error) {
	raw := make([][32]byte, len(answerHashes))
	for i, h := range answerHashes {
		raw[i] = h
	}
	packed, err := answersArgs.Pack(
		new(big.Int).SetUint64(gameID),
		player,
		new(big.Int).SetUint64(uint64(stage)),
		new(big.Int).SetUint64(uint64(score)),
		raw,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode answers claim: %w", err)
	}
	return crypto.Keccak(packed), nil
}
