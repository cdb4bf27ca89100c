package nft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/internal/testutil"
	"github.com/tolelom/triviachain/vm"
)

func TestMint(t *testing.T) {
	st := testutil.NewStateDB()
	m := NewMinter(nil)
	winner := common.Address{0xa}
	ctx := vm.NewContext(st, common.Address{}, 1234)

	id, err := m.Mint(ctx, winner, 7, 1, TokenURI)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	id, err = m.Mint(ctx, winner, 7, 2, TokenURI)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)

	owner, err := m.OwnerOf(st, 1)
	require.NoError(t, err)
	assert.Equal(t, winner, owner)
	uri, err := m.TokenURIOf(st, 2)
	require.NoError(t, err)
	assert.Equal(t, TokenURI, uri)

	badge, err := st.GetNFT(2)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), badge.Rank)
	assert.Equal(t, uint64(7), badge.GameID)
	assert.Equal(t, int64(1234), badge.MintedAt)

	require.Len(t, ctx.Events(), 2)
	assert.Equal(t, uint64(2), ctx.Events()[1].Data["token_id"])

	_, err = m.OwnerOf(st, 3)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMintValidation(t *testing.T) {
	st := testutil.NewStateDB()
	m := NewMinter(nil)
	ctx := vm.NewContext(st, common.Address{}, 0)

	_, err := m.Mint(ctx, common.Address{}, 1, 1, TokenURI)
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
	_, err = m.Mint(ctx, common.Address{1}, 1, 0, TokenURI)
	assert.ErrorIs(t, err, core.ErrInvalidRank)
	_, err = m.Mint(ctx, common.Address{1}, 1, 4, TokenURI)
	assert.ErrorIs(t, err, core.ErrInvalidRank)
	_, err = m.Mint(ctx, common.Address{1}, 1, 1, "")
	assert.ErrorIs(t, err, core.ErrInvalidTokenURI)

	params, err := st.GetParams()
	require.NoError(t, err)
	assert.Zero(t, params.NFTCounter)
}
