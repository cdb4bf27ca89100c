package reward

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/internal/testutil"
	"github.com/tolelom/triviachain/nft"
	"github.com/tolelom/triviachain/staking"
	"github.com/tolelom/triviachain/storage"
	"github.com/tolelom/triviachain/token"
	"github.com/tolelom/triviachain/vm"
)

var (
	creator  = addr(1)
	platform = addr(2)
	p1       = addr(3)
	p2       = addr(4)
)

func addr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}

type fixture struct {
	t    *testing.T
	st   *storage.StateDB
	tok  *token.Token
	led  *staking.Ledger
	dist *Distributor
	game *core.Game
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tok := token.New(nil)
	led := staking.NewLedger(tok, nil)
	return &fixture{
		t:    t,
		st:   testutil.NewStateDB(),
		tok:  tok,
		led:  led,
		dist: NewDistributor(nft.NewMinter(nil), led, platform, nil),
		game: &core.Game{ID: 1, Creator: creator, Ended: true},
	}
}

func (f *fixture) ctx() *vm.Context {
	return vm.NewContext(f.st, common.Address{}, 1_700_000_000)
}

// forfeit escrows a 10 token stake and refunds it at stage, leaving the
// remainder in the pool.
func (f *fixture) forfeit(stage uint8) {
	f.t.Helper()
	ctx := f.ctx()
	loser := addr(99)
	require.NoError(f.t, f.tok.Credit(ctx, loser, token.Tokens(10)))
	require.NoError(f.t, f.tok.Approve(ctx, loser, staking.EscrowAddress, token.Tokens(10)))
	require.NoError(f.t, f.led.Stake(ctx, f.game.ID, loser, token.Tokens(10)))
	_, err := f.led.Refund(ctx, f.game.ID, loser, stage)
	require.NoError(f.t, err)
}

func (f *fixture) balance(a common.Address) *uint256.Int {
	f.t.Helper()
	b, err := f.tok.BalanceOf(f.st, a)
	require.NoError(f.t, err)
	return b
}

func TestDistributeCanonicalScenario(t *testing.T) {
	f := newFixture(t)
	f.forfeit(2) // 7 token pool

	res, err := f.dist.Distribute(f.ctx(), f.game, [3]common.Address{p1, p2, p1})
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, []uint64{1, 2, 3}, res.TokenIDs)

	assert.Equal(t, token.MustTokens("1.4"), f.balance(creator))
	assert.Equal(t, token.MustTokens("1.4"), f.balance(platform))
	assert.Equal(t, token.MustTokens("2.8"), f.balance(p1))
	assert.Equal(t, token.MustTokens("1.4"), f.balance(p2))

	for id, want := range map[uint64]struct {
		owner common.Address
		rank  uint8
	}{1: {p1, 1}, 2: {p2, 2}, 3: {p1, 3}} {
		badge, err := f.st.GetNFT(id)
		require.NoError(t, err)
		assert.Equal(t, want.owner, badge.Owner, "token %d", id)
		assert.Equal(t, want.rank, badge.Rank, "token %d", id)
		assert.Equal(t, nft.TokenURI, badge.TokenURI)
	}
}

func TestDistributeWithoutWinners(t *testing.T) {
	f := newFixture(t)
	f.forfeit(1)

	ctx := f.ctx()
	res, err := f.dist.Distribute(ctx, f.game, [3]common.Address{})
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Empty(t, res.TokenIDs)
	assert.Empty(t, ctx.Events())

	gs, err := f.st.GetGameStakes(f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, token.Tokens(10), &gs.Forfeited)
	assert.True(t, f.balance(creator).IsZero())
}

func TestDistributeEmptyPoolMintsOnly(t *testing.T) {
	f := newFixture(t)

	res, err := f.dist.Distribute(f.ctx(), f.game, [3]common.Address{p1, p2})
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, []uint64{1, 2}, res.TokenIDs)
	assert.True(t, f.balance(p1).IsZero())
}

type failingMinter struct{}

func (failingMinter) Mint(*vm.Context, common.Address, uint64, uint8, string) (uint64, error) {
	return 0, errors.New("minter offline")
}

func TestDistributeStopsOnMintFailure(t *testing.T) {
	f := newFixture(t)
	f.forfeit(2)
	f.dist = NewDistributor(failingMinter{}, f.led, platform, nil)

	_, err := f.dist.Distribute(f.ctx(), f.game, [3]common.Address{p1})
	assert.ErrorContains(t, err, "minter offline")
	assert.True(t, f.balance(p1).IsZero())
	assert.Equal(t, platform, f.dist.Platform())
}
