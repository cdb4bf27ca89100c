package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
)

// Wallet holds a key and builds signed transactions for one chain.
type Wallet struct {
	priv    *crypto.PrivateKey
	chainID string
}

// New creates a Wallet from an existing private key.
func New(priv *crypto.PrivateKey, chainID string) *Wallet {
	return &Wallet{priv: priv, chainID: chainID}
}

// Generate creates a Wallet with a freshly generated key.
func Generate(chainID string) (*Wallet, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return New(priv, chainID), nil
}

// PrivKey returns the private key (handle with care).
func (w *Wallet) PrivKey() *crypto.PrivateKey {
	return w.priv
}

// Address returns the account address used as the transaction sender.
func (w *Wallet) Address() common.Address {
	return w.priv.Address()
}

// NewTx creates a signed transaction. nonce must match the account's
// current nonce.
func (w *Wallet) NewTx(typ core.TxType, nonce uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.chainID, typ, w.Address(), nonce, payload)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(w.priv); err != nil {
		return nil, err
	}
	return tx, nil
}

// Transfer creates a signed token transfer.
func (w *Wallet) Transfer(to common.Address, amount *uint256.Int, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxTokenTransfer, nonce, core.TokenTransferPayload{To: to, Amount: amount.Dec()})
}

// Approve creates a signed allowance for spender, typically the staking
// escrow before joining a game.
func (w *Wallet) Approve(spender common.Address, amount *uint256.Int, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxTokenApprove, nonce, core.TokenApprovePayload{Spender: spender, Amount: amount.Dec()})
}

// JoinGame creates a signed join with the backend admission signature.
func (w *Wallet) JoinGame(gameID uint64, handle, signature string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxGameJoin, nonce, core.GameJoinPayload{GameID: gameID, Handle: handle, Signature: signature})
}

// SubmitAnswers creates a signed stage submission.
func (w *Wallet) SubmitAnswers(gameID uint64, stage uint8, answers []common.Hash, score uint8, signature string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxGameSubmit, nonce, core.GameSubmitPayload{
		GameID:       gameID,
		Stage:        stage,
		AnswerHashes: answers,
		Score:        score,
		Signature:    signature,
	})
}
