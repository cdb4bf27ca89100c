package game

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/staking"
	"github.com/tolelom/triviachain/token"
)

func TestAdvanceStage(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)

	assert.ErrorIs(t, f.m.AdvanceStage(f.ctx(addr(1)), id), core.ErrUnauthorized)
	assert.ErrorIs(t, f.m.AdvanceStage(f.ctx(f.owner), id+1), core.ErrGameDoesNotExist)

	for want := uint8(2); want <= StageCleared; want++ {
		f.advance(id)
		assert.Equal(t, want, f.game(id).Stage)
	}
	assert.ErrorIs(t, f.m.AdvanceStage(f.ctx(f.owner), id), core.ErrFinalStage)
}

func TestRefundPlayer(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	p := addr(2)
	f.enter(id, p)
	require.NoError(t, f.submit(id, p, 1, PerfectScore))
	f.advance(id)

	assert.ErrorIs(t, f.m.RefundPlayer(f.ctx(p), id, p), core.ErrUnauthorized)
	assert.ErrorIs(t, f.m.RefundPlayer(f.ctx(f.owner), id, addr(9)), core.ErrPlayerNotInGame)

	ctx := f.ctx(f.owner)
	require.NoError(t, f.m.RefundPlayer(ctx, id, p))

	// Stage 2 keeps 30% of the 10 token stake.
	assert.Equal(t, token.Tokens(3), f.balance(p))
	assert.Equal(t, token.Tokens(7), &f.stakes(id).Forfeited)
	assert.False(t, f.entry(id, p).InGame)
	assert.Zero(t, f.game(id).PlayerCount)
	assert.Contains(t, eventTypes(ctx), events.EventPlayerRefunded)
	assert.Contains(t, eventTypes(ctx), events.EventPlayerEliminated)

	assert.ErrorIs(t, f.m.RefundPlayer(f.ctx(f.owner), id, p), core.ErrPlayerNotInGame)
}

func TestEndGameRequiresExpiry(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)

	f.now += 3599
	_, err := f.m.EndGame(f.ctx(f.owner), id)
	assert.ErrorIs(t, err, core.ErrGameNotExpired)
	_, err = f.m.AutoEndGame(f.ctx(f.owner), id)
	assert.ErrorIs(t, err, core.ErrGameNotExpired)

	f.now++
	_, err = f.m.EndGame(f.ctx(addr(1)), id)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = f.m.AutoEndGame(f.ctx(f.owner), id)
	require.NoError(t, err)
	assert.True(t, f.game(id).Ended)

	_, err = f.m.EndGame(f.ctx(f.owner), id)
	assert.ErrorIs(t, err, core.ErrGameAlreadyEnded)
	assert.ErrorIs(t, f.m.AdvanceStage(f.ctx(f.owner), id), core.ErrGameAlreadyEnded)
	assert.ErrorIs(t, f.join(id, addr(5)), core.ErrGameAlreadyEnded)
}

// TestEndToEndSingleFinisher plays a two-player game where one player clears
// every stage and the other drops out at stage 2, leaving a 7 token pool.
func TestEndToEndSingleFinisher(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	creator, p1, p2 := addr(1), addr(2), addr(3)
	id := f.create(creator, 600)
	f.enter(id, p1)
	f.enter(id, p2)

	require.NoError(t, f.submit(id, p1, 1, PerfectScore))
	require.NoError(t, f.submit(id, p2, 1, PerfectScore))
	f.advance(id)
	require.NoError(t, f.submit(id, p1, 2, PerfectScore))
	require.NoError(t, f.submit(id, p2, 2, 3))
	f.advance(id)
	require.NoError(t, f.submit(id, p1, 3, PerfectScore))

	assert.Equal(t, token.Tokens(3), f.balance(p2))
	assert.Equal(t, token.Tokens(7), &f.stakes(id).Forfeited)

	f.now += 600
	ctx := f.ctx(f.owner)
	res, err := f.m.EndGame(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, []uint64{1}, res.TokenIDs)

	// p1: full stake back plus one winner slot of 1.4.
	assert.Equal(t, token.MustTokens("11.4"), f.balance(p1))
	assert.Equal(t, token.MustTokens("1.4"), f.balance(creator))
	assert.Equal(t, token.MustTokens("1.4"), f.balance(f.platform))

	gs := f.stakes(id)
	assert.True(t, gs.Forfeited.IsZero())
	assert.True(t, gs.TotalStaked.IsZero())
	// The two empty winner slots stay in escrow.
	assert.Equal(t, token.MustTokens("2.8"), &gs.Residual)
	assert.Equal(t, token.MustTokens("2.8"), f.balance(staking.EscrowAddress))

	g := f.game(id)
	assert.True(t, g.Ended)
	assert.Zero(t, g.PlayerCount)
	assert.False(t, f.entry(id, p1).InGame)

	badge, err := f.st.GetNFT(1)
	require.NoError(t, err)
	assert.Equal(t, p1, badge.Owner)
	assert.Equal(t, uint8(1), badge.Rank)
	assert.Equal(t, id, badge.GameID)

	types := eventTypes(ctx)
	assert.Contains(t, types, events.EventNFTMinted)
	assert.Contains(t, types, events.EventRewardsDistributed)
	assert.Equal(t, events.EventGameEnded, types[len(types)-1])

	sink := addr(0xBEEF)
	amount, err := f.m.SweepForfeitures(f.ctx(f.owner), id, sink)
	require.NoError(t, err)
	assert.Equal(t, token.MustTokens("2.8"), amount)
	assert.Equal(t, token.MustTokens("2.8"), f.balance(sink))
	assert.True(t, f.balance(staking.EscrowAddress).IsZero())

	_, err = f.m.SweepForfeitures(f.ctx(f.owner), id, sink)
	assert.ErrorIs(t, err, core.ErrNothingToSweep)
}

func TestEndGameWithoutWinners(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	creator, p := addr(1), addr(2)
	id := f.create(creator, 600)
	f.enter(id, p)
	require.NoError(t, f.submit(id, p, 1, 0))

	_, err := f.m.SweepForfeitures(f.ctx(f.owner), id, addr(0xBEEF))
	assert.ErrorIs(t, err, core.ErrGameNotEnded)

	f.now += 600
	ctx := f.ctx(f.owner)
	res, err := f.m.EndGame(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Empty(t, res.TokenIDs)

	assert.True(t, f.balance(creator).IsZero())
	assert.True(t, f.balance(f.platform).IsZero())
	assert.Equal(t, token.Tokens(10), &f.stakes(id).Forfeited)
	assert.NotContains(t, eventTypes(ctx), events.EventNFTMinted)
	assert.NotContains(t, eventTypes(ctx), events.EventTokenTransfer)

	params, err := f.st.GetParams()
	require.NoError(t, err)
	assert.Zero(t, params.NFTCounter)

	_, err = f.m.SweepForfeitures(f.ctx(p), id, p)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = f.m.SweepForfeitures(f.ctx(f.owner), id, common.Address{})
	assert.ErrorIs(t, err, core.ErrInvalidAddress)

	amount, err := f.m.SweepForfeitures(f.ctx(f.owner), id, addr(0xBEEF))
	require.NoError(t, err)
	assert.Equal(t, token.Tokens(10), amount)
}

func TestEndGameWithEmptyPoolStillMintsBadges(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 600)
	p := addr(2)
	f.enter(id, p)
	for s := uint8(1); s <= FinalStage; s++ {
		require.NoError(t, f.submit(id, p, s, PerfectScore))
		if s < FinalStage {
			f.advance(id)
		}
	}

	f.now += 600
	res, err := f.m.EndGame(f.ctx(f.owner), id)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, []uint64{1}, res.TokenIDs)
	assert.Equal(t, token.Tokens(10), f.balance(p))
}

func TestRefundStuckPlayerAfterEnd(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 600)
	p := addr(2)
	f.enter(id, p)
	require.NoError(t, f.submit(id, p, 1, PerfectScore))
	f.advance(id)

	f.now += 600
	_, err := f.m.EndGame(f.ctx(f.owner), id)
	require.NoError(t, err)
	assert.True(t, f.entry(id, p).InGame)

	require.NoError(t, f.m.RefundPlayer(f.ctx(f.owner), id, p))
	assert.Equal(t, token.Tokens(3), f.balance(p))
	assert.Equal(t, token.Tokens(7), &f.stakes(id).Forfeited)
}

func TestEndGameReleasesOnlyFinishedSlots(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 600)
	p := addr(2)
	f.enter(id, p)
	for stage := uint8(1); stage <= FinalStage; stage++ {
		if stage > 1 {
			f.advance(id)
		}
		require.NoError(t, f.submit(id, p, stage, PerfectScore))
	}
	finished := f.entry(id, p)
	require.Equal(t, uint8(StageCleared), finished.CurrentStage)
	require.NotZero(t, finished.CompletionTime)

	require.NoError(t, f.m.RefundPlayer(f.ctx(f.owner), id, p))
	assert.Equal(t, token.Tokens(10), f.balance(p))

	f.enter(id, p)
	e := f.entry(id, p)
	assert.True(t, e.InGame)
	assert.Equal(t, uint8(1), e.CurrentStage)
	assert.Zero(t, e.Score)
	assert.Zero(t, e.CompletionTime, "old completion time is cleared")
	assert.Equal(t, [4]bool{}, e.Submitted)
	assert.Equal(t, token.Tokens(10), f.balance(p))

	f.now += 600
	_, err := f.m.EndGame(f.ctx(f.owner), id)
	require.NoError(t, err)

	// The rejoined slot never cleared a stage, so nothing is released.
	assert.Equal(t, token.Tokens(10), f.balance(p))
	assert.True(t, f.entry(id, p).InGame)
	assert.Equal(t, uint32(1), f.game(id).PlayerCount)
	rec, err := f.st.GetStake(id, p)
	require.NoError(t, err)
	assert.Equal(t, token.Tokens(10), &rec.Amount)

	require.NoError(t, f.m.RefundPlayer(f.ctx(f.owner), id, p))
	assert.Equal(t, token.Tokens(10), f.balance(p), "stage 1 refunds nothing")
	assert.Equal(t, token.Tokens(10), &f.stakes(id).Forfeited)
}

func TestSetBackendSigner(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	next := addr(0x51)

	assert.ErrorIs(t, f.m.SetBackendSigner(f.ctx(next), next), core.ErrUnauthorized)
	assert.ErrorIs(t, f.m.SetBackendSigner(f.ctx(f.owner), common.Address{}), core.ErrInvalidAddress)

	ctx := f.ctx(f.owner)
	require.NoError(t, f.m.SetBackendSigner(ctx, next))
	params, err := f.st.GetParams()
	require.NoError(t, err)
	assert.Equal(t, next, params.BackendSigner)
	require.Len(t, ctx.Events(), 1)
	assert.Equal(t, f.backend.Address().Hex(), ctx.Events()[0].Data["old"])

	// Admissions signed by the old backend key no longer verify.
	id := f.create(addr(1), 600)
	f.fund(addr(2), 10)
	assert.ErrorIs(t, f.join(id, addr(2)), core.ErrInvalidSignature)
}

func TestSetStakingPausedRequiresOwner(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	assert.ErrorIs(t, f.m.SetStakingPaused(f.ctx(addr(1)), true), core.ErrUnauthorized)
	require.NoError(t, f.m.SetStakingPaused(f.ctx(f.owner), true))
	params, err := f.st.GetParams()
	require.NoError(t, err)
	assert.True(t, params.StakingPaused)
}
