package game

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/events"
	"github.com/tolelom/triviachain/identity"
	"github.com/tolelom/triviachain/token"
)

func TestSubmitAnswersPerfectScoreAdvancesPlayer(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	p := addr(2)
	f.enter(id, p)

	hashes := answers(1)
	sig := f.sign(f.backend.SignAnswers(id, p, 1, PerfectScore, hashes))
	ctx := f.ctx(p)
	require.NoError(t, f.m.SubmitAnswers(ctx, id, 1, hashes, PerfectScore, sig))

	e := f.entry(id, p)
	assert.Equal(t, uint8(2), e.CurrentStage)
	assert.Equal(t, uint8(PerfectScore), e.Score)
	assert.True(t, e.Submitted[1])
	assert.True(t, e.InGame)
	assert.Zero(t, e.CompletionTime)

	require.Len(t, ctx.Events(), 1)
	ev := ctx.Events()[0]
	assert.Equal(t, events.EventStageCompleted, ev.Type)
	assert.Equal(t, uint8(2), ev.Data["stage"])
	assert.Equal(t, int64(0), ev.Data["marker"])
}

func TestSubmitAnswersIsIdempotent(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	p := addr(2)
	f.enter(id, p)

	require.NoError(t, f.submit(id, p, 1, PerfectScore))
	assert.ErrorIs(t, f.submit(id, p, 1, PerfectScore), core.ErrAlreadySubmitted)
	assert.ErrorIs(t, f.submit(id, p, 1, 0), core.ErrAlreadySubmitted)
	assert.Equal(t, uint8(2), f.entry(id, p).CurrentStage)
}

func TestSubmitAnswersStageGating(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	early, late := addr(2), addr(3)
	f.enter(id, early)
	f.enter(id, late)

	// Ahead of the global stage.
	assert.ErrorIs(t, f.submit(id, early, 2, PerfectScore), core.ErrStageMismatch)

	require.NoError(t, f.submit(id, early, 1, PerfectScore))
	f.advance(id)

	// Behind the global stage.
	assert.ErrorIs(t, f.submit(id, late, 1, PerfectScore), core.ErrStageMismatch)
	// At the global stage but the player never cleared stage 1.
	assert.ErrorIs(t, f.submit(id, late, 2, PerfectScore), core.ErrStageMismatch)

	require.NoError(t, f.submit(id, early, 2, PerfectScore))
	assert.Equal(t, uint8(3), f.entry(id, early).CurrentStage)
	assert.True(t, f.entry(id, late).InGame, "a stuck player is not eliminated")
}

func TestSubmitAnswersValidation(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	p := addr(2)
	f.enter(id, p)

	good := answers(1)
	sign := func(stage, score uint8, hashes []common.Hash) []byte {
		return f.sign(f.backend.SignAnswers(id, p, stage, score, hashes))
	}

	cases := []struct {
		name   string
		stage  uint8
		hashes []common.Hash
		score  uint8
		sig    []byte
		want   error
	}{
		{"stage zero", 0, good, 5, sign(0, 5, good), core.ErrInvalidStage},
		{"stage four", 4, good, 5, sign(4, 5, good), core.ErrInvalidStage},
		{"four answers", 1, good[:4], 5, sign(1, 5, good[:4]), core.ErrInvalidAnswerCount},
		{"score above perfect", 1, good, 6, sign(1, 6, good), core.ErrInvalidScore},
		{"score not attested", 1, good, 5, sign(1, 4, good), core.ErrInvalidSignature},
		{"answers not attested", 1, answers(2), 5, sign(1, 5, good), core.ErrInvalidSignature},
		{"empty signature", 1, good, 5, nil, core.ErrInvalidSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.m.SubmitAnswers(f.ctx(p), id, tc.stage, tc.hashes, tc.score, tc.sig)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("not in game", func(t *testing.T) {
		assert.ErrorIs(t, f.submit(id, addr(9), 1, 5), core.ErrNotInGame)
	})
	t.Run("unknown game", func(t *testing.T) {
		assert.ErrorIs(t, f.submit(id+1, p, 1, 5), core.ErrGameDoesNotExist)
	})

	e := f.entry(id, p)
	assert.False(t, e.Submitted[1])
	assert.Equal(t, uint8(1), e.CurrentStage)
}

func TestEliminationRefundsByStage(t *testing.T) {
	cases := []struct {
		stage     uint8
		refunded  string
		forfeited string
	}{
		{1, "0", "10"},
		{2, "3", "7"},
		{3, "7", "3"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("stage %d", tc.stage), func(t *testing.T) {
			f := newFixture(t, identity.ResolverOnly)
			id := f.create(addr(1), 3600)
			p := addr(2)
			f.enter(id, p)

			for s := uint8(1); s < tc.stage; s++ {
				require.NoError(t, f.submit(id, p, s, PerfectScore))
				f.advance(id)
			}
			require.NoError(t, f.submit(id, p, tc.stage, 4))

			assert.Equal(t, token.MustTokens(tc.refunded), f.balance(p))
			assert.Equal(t, token.MustTokens(tc.forfeited), &f.stakes(id).Forfeited)
			e := f.entry(id, p)
			assert.False(t, e.InGame)
			assert.Equal(t, uint8(4), e.Score)
			assert.Zero(t, f.game(id).PlayerCount)

			// Eliminated players cannot submit again.
			assert.ErrorIs(t, f.submit(id, p, tc.stage, PerfectScore), core.ErrNotInGame)
		})
	}
}

func TestFinalStageRecordsCompletion(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	p1, p2 := addr(2), addr(3)
	f.enter(id, p1)
	f.enter(id, p2)

	for s := uint8(1); s <= FinalStage; s++ {
		require.NoError(t, f.submit(id, p2, s, PerfectScore))
		require.NoError(t, f.submit(id, p1, s, PerfectScore))
		if s < FinalStage {
			f.now += 10
			f.advance(id)
		}
	}

	assert.Equal(t, []common.Address{p2, p1}, f.game(id).PerfectScorers)
	e := f.entry(id, p1)
	assert.Equal(t, uint8(StageCleared), e.CurrentStage)
	assert.Equal(t, f.now, e.CompletionTime)
	assert.True(t, e.InGame)
}

func TestRejoinResetsSlot(t *testing.T) {
	f := newFixture(t, identity.ResolverOnly)
	id := f.create(addr(1), 3600)
	p := addr(2)
	f.enter(id, p)

	require.NoError(t, f.submit(id, p, 1, 3))
	assert.False(t, f.entry(id, p).InGame)

	f.enter(id, p)
	e := f.entry(id, p)
	assert.True(t, e.InGame)
	assert.Equal(t, uint8(1), e.CurrentStage)
	assert.Zero(t, e.Score)
	assert.Zero(t, e.CompletionTime)
	assert.Equal(t, [4]bool{}, e.Submitted)
	assert.Equal(t, uint32(1), f.game(id).PlayerCount)

	// The fresh slot may submit stage 1 again.
	require.NoError(t, f.submit(id, p, 1, PerfectScore))
}
