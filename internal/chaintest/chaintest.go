// Package chaintest runs a fully wired in-memory node for tests that drive
// transactions through the executor. Never import this in production code.
package chaintest

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/config"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/game"
	"github.com/tolelom/triviachain/internal/testutil"
	"github.com/tolelom/triviachain/node"
	"github.com/tolelom/triviachain/staking"
	"github.com/tolelom/triviachain/wallet"
)

const (
	ChainID   = "triviachain-test"
	StartTime = 1_700_000_000
)

// Chain is a bootstrapped node plus the keys that act on it. P1 and P2
// start with 20 tokens each and own "p1.trivia" and "p2.trivia"; Creator
// owns "host.trivia".
type Chain struct {
	t        *testing.T
	Node     *node.Node
	Clock    *testutil.Clock
	Backend  *attest.Attestor
	Owner    *wallet.Wallet
	Creator  *wallet.Wallet
	P1, P2   *wallet.Wallet
	Platform common.Address
	nonces   map[common.Address]uint64
}

// New bootstraps a chain on a MemDB.
func New(t *testing.T) *Chain {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := &Chain{
		t:        t,
		Clock:    testutil.NewClock(StartTime),
		Backend:  attest.NewAttestor(key),
		Platform: common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		nonces:   make(map[common.Address]uint64),
	}
	c.Owner = c.NewWallet()
	c.Creator = c.NewWallet()
	c.P1 = c.NewWallet()
	c.P2 = c.NewWallet()

	cfg := config.DefaultConfig()
	cfg.ChainID = ChainID
	cfg.Owner = c.Owner.Address()
	cfg.BackendSigner = c.Backend.Address()
	cfg.Platform = c.Platform
	cfg.Genesis.Alloc[c.P1.Address().Hex()] = "20"
	cfg.Genesis.Alloc[c.P2.Address().Hex()] = "20"
	cfg.Genesis.Names["host.trivia"] = c.Creator.Address().Hex()
	cfg.Genesis.Names["p1.trivia"] = c.P1.Address().Hex()
	cfg.Genesis.Names["p2.trivia"] = c.P2.Address().Hex()

	c.Node, err = node.New(cfg, testutil.NewMemDB(), c.Clock, nil)
	require.NoError(t, err)
	return c
}

// NewWallet returns an unfunded wallet for this chain.
func (c *Chain) NewWallet() *wallet.Wallet {
	c.t.Helper()
	w, err := wallet.Generate(ChainID)
	require.NoError(c.t, err)
	return w
}

// Send signs a transaction from w with its next nonce and executes it. The
// envelope must be accepted; the returned receipt may still report failure.
func (c *Chain) Send(w *wallet.Wallet, typ core.TxType, payload any) *core.Receipt {
	c.t.Helper()
	tx, err := w.NewTx(typ, c.nonces[w.Address()], payload)
	require.NoError(c.t, err)
	rcpt, err := c.Node.Executor.Submit(tx)
	require.NoError(c.t, err, "%s rejected", typ)
	c.nonces[w.Address()]++
	return rcpt
}

// MustSend is Send for transactions that must succeed.
func (c *Chain) MustSend(w *wallet.Wallet, typ core.TxType, payload any) *core.Receipt {
	c.t.Helper()
	rcpt := c.Send(w, typ, payload)
	require.True(c.t, rcpt.OK, "%s failed: %s", typ, rcpt.Error)
	return rcpt
}

// Balance reads addr's committed token balance.
func (c *Chain) Balance(addr common.Address) *uint256.Int {
	c.t.Helper()
	var bal *uint256.Int
	require.NoError(c.t, c.Node.Executor.View(func(st core.State) error {
		var err error
		bal, err = c.Node.Token.BalanceOf(st, addr)
		return err
	}))
	return bal
}

// Params reads the committed chain parameters.
func (c *Chain) Params() *core.Params {
	c.t.Helper()
	var p *core.Params
	require.NoError(c.t, c.Node.Executor.View(func(st core.State) error {
		var err error
		p, err = st.GetParams()
		return err
	}))
	return p
}

// Stakes reads the escrow totals of gameID.
func (c *Chain) Stakes(gameID uint64) *core.GameStakes {
	c.t.Helper()
	var gs *core.GameStakes
	require.NoError(c.t, c.Node.Executor.View(func(st core.State) error {
		var err error
		gs, err = st.GetGameStakes(gameID)
		return err
	}))
	return gs
}

// CreateGame opens a game as Creator and returns its id.
func (c *Chain) CreateGame(duration int64) uint64 {
	c.t.Helper()
	rcpt := c.MustSend(c.Creator, core.TxGameCreate, core.GameCreatePayload{
		Handle: "host.trivia",
		QuestionHashes: [3]common.Hash{
			crypto.Keccak([]byte("q1")),
			crypto.Keccak([]byte("q2")),
			crypto.Keccak([]byte("q3")),
		},
		Duration: duration,
	})
	res, ok := rcpt.Result.(map[string]any)
	require.True(c.t, ok)
	id, ok := res["game_id"].(uint64)
	require.True(c.t, ok)
	return id
}

// JoinTx approves one stake for w and sends its join, signed by signer,
// under handle. The join's receipt is returned.
func (c *Chain) JoinTx(w *wallet.Wallet, signer *attest.Attestor, gameID uint64, handle string) *core.Receipt {
	c.t.Helper()
	c.MustSend(w, core.TxTokenApprove, core.TokenApprovePayload{
		Spender: staking.EscrowAddress,
		Amount:  game.StakeAmount.Dec(),
	})
	sig, err := signer.SignJoin(w.Address(), handle, gameID)
	require.NoError(c.t, err)
	return c.Send(w, core.TxGameJoin, core.GameJoinPayload{GameID: gameID, Handle: handle, Signature: sig})
}

// Join enters P1 or P2 into gameID under its genesis handle.
func (c *Chain) Join(w *wallet.Wallet, gameID uint64) {
	c.t.Helper()
	rcpt := c.JoinTx(w, c.Backend, gameID, c.handle(w))
	require.True(c.t, rcpt.OK, "join failed: %s", rcpt.Error)
}

// Submit sends a backend-signed result for stage.
func (c *Chain) Submit(w *wallet.Wallet, gameID uint64, stage, score uint8) *core.Receipt {
	c.t.Helper()
	hashes := make([]common.Hash, game.AnswerCount)
	for i := range hashes {
		hashes[i] = crypto.Keccak([]byte(fmt.Sprintf("%d/%d", stage, i)))
	}
	sig, err := c.Backend.SignAnswers(gameID, w.Address(), stage, score, hashes)
	require.NoError(c.t, err)
	return c.Send(w, core.TxGameSubmit, core.GameSubmitPayload{
		GameID: gameID, Stage: stage, AnswerHashes: hashes, Score: score, Signature: sig,
	})
}

func (c *Chain) handle(w *wallet.Wallet) string {
	switch w {
	case c.P1:
		return "p1.trivia"
	case c.P2:
		return "p2.trivia"
	}
	c.t.Fatalf("no genesis handle for %s", w.Address())
	return ""
}
