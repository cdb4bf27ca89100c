package game

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/attest"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/internal/testutil"
	"github.com/tolelom/triviachain/nft"
	"github.com/tolelom/triviachain/reward"
	"github.com/tolelom/triviachain/staking"
	"github.com/tolelom/triviachain/storage"
	"github.com/tolelom/triviachain/token"
	"github.com/tolelom/triviachain/vm"
)

const startTime = 1_700_000_000

type fixture struct {
	t        *testing.T
	st       *storage.StateDB
	tok      *token.Token
	ledger   *staking.Ledger
	names    *identity.Registry
	m        *Machine
	backend  *attest.Attestor
	owner    common.Address
	platform common.Address
	now      int64
}

func newFixture(t *testing.T, policy identity.Policy) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		st:       testutil.NewStateDB(),
		tok:      token.New(nil),
		names:    identity.NewRegistry(nil),
		backend:  attest.NewAttestor(key),
		owner:    addr(0xA0),
		platform: addr(0xA1),
		now:      startTime,
	}
	f.ledger = staking.NewLedger(f.tok, nil)
	f.m = New(Deps{
		Ledger:      f.ledger,
		Token:       f.tok,
		Resolver:    f.names,
		Verifier:    attest.SignatureVerifier{},
		Distributor: reward.NewDistributor(nft.NewMinter(nil), f.ledger, f.platform, nil),
		Admin:       NewAdminCapability(f.owner),
		Policy:      policy,
		Escrow:      staking.EscrowAddress,
	})

	params, err := f.st.GetParams()
	require.NoError(t, err)
	params.BackendSigner = f.backend.Address()
	require.NoError(t, f.st.SetParams(params))
	return f
}

func addr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}

func (f *fixture) ctx(caller common.Address) *vm.Context {
	return vm.NewContext(f.st, caller, f.now)
}

func (f *fixture) sign(sig string, err error) []byte {
	f.t.Helper()
	require.NoError(f.t, err)
	raw, err := attest.DecodeSignature(sig)
	require.NoError(f.t, err)
	return raw
}

// fund credits p with n tokens and approves the escrow for one stake.
func (f *fixture) fund(p common.Address, n uint64) {
	f.t.Helper()
	ctx := f.ctx(p)
	require.NoError(f.t, f.tok.Credit(ctx, p, token.Tokens(n)))
	require.NoError(f.t, f.tok.Approve(ctx, p, staking.EscrowAddress, StakeAmount))
}

// register binds a handle derived from a to a.
func (f *fixture) register(a common.Address) string {
	f.t.Helper()
	handle := handleOf(a)
	require.NoError(f.t, f.names.Register(f.ctx(f.owner), handle, a))
	return handle
}

func handleOf(a common.Address) string {
	return fmt.Sprintf("user-%x.trivia", a.Bytes()[18:])
}

func questions() [3]common.Hash {
	return [3]common.Hash{
		crypto.Keccak([]byte("q1")),
		crypto.Keccak([]byte("q2")),
		crypto.Keccak([]byte("q3")),
	}
}

func answers(stage uint8) []common.Hash {
	out := make([]common.Hash, AnswerCount)
	for i := range out {
		out[i] = crypto.Keccak([]byte(fmt.Sprintf("stage-%d-answer-%d", stage, i)))
	}
	return out
}

func (f *fixture) create(creator common.Address, duration int64) uint64 {
	f.t.Helper()
	handle := f.register(creator)
	id, err := f.m.CreateGame(f.ctx(creator), handle, questions(), duration, nil)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) join(gameID uint64, p common.Address) error {
	f.t.Helper()
	handle := handleOf(p)
	if _, err := f.names.Resolve(f.st, handle); err != nil {
		f.register(p)
	}
	sig := f.sign(f.backend.SignJoin(p, handle, gameID))
	return f.m.JoinGame(f.ctx(p), gameID, handle, sig)
}

// enter funds p with exactly one stake and joins it to gameID.
func (f *fixture) enter(gameID uint64, p common.Address) {
	f.t.Helper()
	f.fund(p, 10)
	require.NoError(f.t, f.join(gameID, p))
}

func (f *fixture) submit(gameID uint64, p common.Address, stage, score uint8) error {
	f.t.Helper()
	hashes := answers(stage)
	sig := f.sign(f.backend.SignAnswers(gameID, p, stage, score, hashes))
	return f.m.SubmitAnswers(f.ctx(p), gameID, stage, hashes, score, sig)
}

func (f *fixture) advance(gameID uint64) {
	f.t.Helper()
	require.NoError(f.t, f.m.AdvanceStage(f.ctx(f.owner), gameID))
}

func (f *fixture) balance(a common.Address) *uint256.Int {
	f.t.Helper()
	b, err := f.tok.BalanceOf(f.st, a)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) game(id uint64) *core.Game {
	f.t.Helper()
	g, err := f.m.Game(f.st, id)
	require.NoError(f.t, err)
	return g
}

func (f *fixture) entry(id uint64, p common.Address) *core.PlayerEntry {
	f.t.Helper()
	e, err := f.m.Player(f.st, id, p)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) stakes(id uint64) *core.GameStakes {
	f.t.Helper()
	gs, err := f.st.GetGameStakes(id)
	require.NoError(f.t, err)
	return gs
}

func eventTypes(ctx *vm.Context) []events.EventType {
	var out []events.EventType
	for _, ev := range ctx.Events() {
		out = append(out, ev.Type)
	}
	return out
}

func TestGameLookup(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)

	_, err := f.m.Game(f.st, 42)
	assert.ErrorIs(t, err, core.ErrGameDoesNotExist)

	in, err := f.m.IsPlayerInGame(f.st, 42, addr(1))
	require.NoError(t, err)
	assert.False(t, in)
}

func TestAdminCapability(t *testing.T) {
	admin := NewAdminCapability(addr(1))
	assert.NoError(t, admin.Authorize(addr(1)))
	assert.ErrorIs(t, admin.Authorize(addr(2)), core.ErrUnauthorized)

	// A capability without an owner authorizes nobody, not even the zero address.
	assert.ErrorIs(t, NewAdminCapability(common.Address{}).Authorize(common.Address{}), core.ErrUnauthorized)
}

func TestWinnersPadsWithZeroAddress(t *testing.T) {
	g := &core.Game{PerfectScorers: []common.Address{addr(1)}}
	assert.Equal(t, [3]common.Address{addr(1)}, Winners(g))

	g.PerfectScorers = []common.Address{addr(1), addr(2), addr(3), addr(4)}
	assert.Equal(t, [3]common.Address{addr(1), addr(2), addr(3)}, Winners(g))
}
