package core

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTokenMint      TxType = "token_mint"
	TxTokenTransfer  TxType = "token_transfer"
	TxTokenApprove   TxType = "token_approve"
	TxMintingPause   TxType = "minting_pause"
	TxMintingUnpause TxType = "minting_unpause"
	TxNameRegister   TxType = "name_register"
	TxGameCreate     TxType = "game_create"
	TxGameJoin       TxType = "game_join"
	TxGameSubmit     TxType = "game_submit"
	TxGameAdvance    TxType = "game_advance"
	TxGameRefund     TxType = "game_refund"
	TxGameEnd        TxType = "game_end"
	TxGameAutoEnd    TxType = "game_auto_end"
	TxSignerSet      TxType = "signer_set"
	TxStakingPause   TxType = "staking_pause"
	TxStakingUnpause TxType = "staking_unpause"
	TxStakingSweep   TxType = "staking_sweep"
)

// Transaction is the atomic unit of work on the chain.
// From is the sender's address; Signature is a 65-byte secp256k1 signature
// (hex) over Hash() and must recover to From.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      common.Address  `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      common.Address  `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (tx *Transaction) digest() []byte {
	data, err := json.Marshal(signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	})
	if err != nil {
		return nil
	}
	return crypto.HashBytes(data)
}

// Hash returns a deterministic hash of the transaction (sans Signature).
func (tx *Transaction) Hash() string {
	d := tx.digest()
	if d == nil {
		return ""
	}
	return hex.EncodeToString(d)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv *crypto.PrivateKey) error {
	sig, err := crypto.Sign(priv, tx.digest())
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	tx.Signature = hex.EncodeToString(sig)
	tx.ID = tx.Hash()
	return nil
}

// Verify checks that the signature recovers to From.
func (tx *Transaction) Verify() error {
	if tx.From == (common.Address{}) {
		return errors.New("missing from field")
	}
	sig, err := hex.DecodeString(tx.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	signer, err := crypto.Recover(tx.digest(), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if signer != tx.From {
		return fmt.Errorf("signature from %s does not match sender %s", signer, tx.From)
	}
	return nil
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from common.Address, nonce uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// Receipt records the outcome of an executed transaction.
type Receipt struct {
	TxID   string `json:"tx_id"`
	Height uint64 `json:"height"`
	Time   int64  `json:"time"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

// ---- Payload types ----

// TokenMintPayload mints tokens to the sender.
type TokenMintPayload struct {
	Amount string `json:"amount"` // decimal base units
}

// TokenTransferPayload moves tokens from the sender.
type TokenTransferPayload struct {
	To     common.Address `json:"to"`
	Amount string         `json:"amount"`
}

// TokenApprovePayload sets the sender's allowance for Spender.
type TokenApprovePayload struct {
	Spender common.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

// NameRegisterPayload binds Handle to Address in the identity resolver.
type NameRegisterPayload struct {
	Handle  string         `json:"handle"`
	Address common.Address `json:"address"`
}

// GameCreatePayload opens a new game. Signature is only consulted for
// handles that do not resolve to the sender.
type GameCreatePayload struct {
	Handle         string         `json:"handle"`
	QuestionHashes [3]common.Hash `json:"question_hashes"`
	Duration       int64          `json:"duration"` // seconds
	Signature      string         `json:"signature,omitempty"`
}

// GameJoinPayload joins a game with a backend-signed admission.
type GameJoinPayload struct {
	GameID    uint64 `json:"game_id"`
	Handle    string `json:"handle"`
	Signature string `json:"signature"`
}

// GameSubmitPayload submits a backend-graded stage result.
type GameSubmitPayload struct {
	GameID       uint64        `json:"game_id"`
	Stage        uint8         `json:"stage"`
	AnswerHashes []common.Hash `json:"answer_hashes"`
	Score        uint8         `json:"score"`
	Signature    string        `json:"signature"`
}

// GameRefPayload addresses a game for owner operations.
type GameRefPayload struct {
	GameID uint64 `json:"game_id"`
}

// GameRefundPayload removes a player from a game with a partial refund.
type GameRefundPayload struct {
	GameID uint64         `json:"game_id"`
	Player common.Address `json:"player"`
}

// SignerSetPayload replaces the trusted backend signer.
type SignerSetPayload struct {
	Signer common.Address `json:"signer"`
}

// StakingSweepPayload moves a finished game's unconsumed escrow to Recipient.
type StakingSweepPayload struct {
	GameID    uint64         `json:"game_id"`
	Recipient common.Address `json:"recipient"`
}
