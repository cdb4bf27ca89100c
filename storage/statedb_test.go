package storage_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/core"
	"github.com/tolelom/triviachain/internal/testutil"
	"github.com/tolelom/triviachain/storage"
)

func TestStateDBZeroValueRecords(t *testing.T) {
	st := testutil.NewStateDB()
	alice := common.Address{0xa}

	acc, err := st.GetAccount(alice)
	require.NoError(t, err)
	assert.Equal(t, alice, acc.Address)
	assert.True(t, acc.Balance.IsZero())

	gs, err := st.GetGameStakes(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), gs.GameID)

	_, err = st.GetGame(3)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = st.GetPlayer(3, alice)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = st.GetNFT(1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = st.GetName(common.Hash{1})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStateDBSnapshotRevert(t *testing.T) {
	st := testutil.NewStateDB()
	require.NoError(t, st.SetGame(&core.Game{ID: 1, Stage: 1}))

	snap, err := st.Snapshot()
	require.NoError(t, err)
	require.NoError(t, st.SetGame(&core.Game{ID: 1, Stage: 2}))
	require.NoError(t, st.SetGame(&core.Game{ID: 2, Stage: 1}))

	require.NoError(t, st.RevertToSnapshot(snap))
	g, err := st.GetGame(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), g.Stage)
	_, err = st.GetGame(2)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Error(t, st.RevertToSnapshot(snap), "a reverted snapshot is consumed")
	assert.Error(t, st.RevertToSnapshot(-1))
}

func TestStateDBNestedSnapshots(t *testing.T) {
	st := testutil.NewStateDB()
	outer, err := st.Snapshot()
	require.NoError(t, err)
	require.NoError(t, st.SetGame(&core.Game{ID: 1}))
	inner, err := st.Snapshot()
	require.NoError(t, err)
	require.NoError(t, st.SetGame(&core.Game{ID: 2}))

	require.NoError(t, st.RevertToSnapshot(inner))
	_, err = st.GetGame(1)
	assert.NoError(t, err)
	_, err = st.GetGame(2)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, st.RevertToSnapshot(outer))
	_, err = st.GetGame(1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStateDBCommitPersists(t *testing.T) {
	db := testutil.NewMemDB()
	st := storage.NewStateDB(db)
	require.NoError(t, st.SetGame(&core.Game{ID: 1, Creator: common.Address{0xc}}))
	before := st.ComputeRoot()
	assert.Zero(t, db.Len(), "writes stay buffered until commit")
	require.NoError(t, st.Commit())
	assert.Equal(t, 1, db.Len())

	assert.Equal(t, before, st.ComputeRoot(), "commit must not change the root")

	fresh := storage.NewStateDB(db)
	g, err := fresh.GetGame(1)
	require.NoError(t, err)
	assert.Equal(t, common.Address{0xc}, g.Creator)
	assert.Equal(t, before, fresh.ComputeRoot())
}

func TestComputeRootTracksState(t *testing.T) {
	a, b := testutil.NewStateDB(), testutil.NewStateDB()
	assert.Equal(t, a.ComputeRoot(), b.ComputeRoot())

	require.NoError(t, a.SetParams(&core.Params{GameCounter: 1}))
	assert.NotEqual(t, a.ComputeRoot(), b.ComputeRoot())

	require.NoError(t, b.SetParams(&core.Params{GameCounter: 1}))
	assert.Equal(t, a.ComputeRoot(), b.ComputeRoot())
}

func TestReceiptStore(t *testing.T) {
	rs := storage.NewReceiptStore(testutil.NewMemDB())

	head, err := rs.Head()
	require.NoError(t, err)
	assert.Equal(t, storage.Head{}, head)

	require.NoError(t, rs.SetHead(storage.Head{Height: 3, Time: 99}))
	head, err = rs.Head()
	require.NoError(t, err)
	assert.Equal(t, storage.Head{Height: 3, Time: 99}, head)

	require.NoError(t, rs.PutReceipt(&core.Receipt{TxID: "abc", Height: 3, OK: false, Error: "boom"}))
	r, err := rs.GetReceipt("abc")
	require.NoError(t, err)
	assert.Equal(t, "boom", r.Error)
	assert.False(t, r.OK)

	_, err = rs.GetReceipt("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLevelDB(t *testing.T) {
	db, err := storage.NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	st := storage.NewStateDB(db)
	require.NoError(t, st.SetGame(&core.Game{ID: 9}))
	require.NoError(t, st.Commit())

	g, err := storage.NewStateDB(db).GetGame(9)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), g.ID)

	_, err = db.Get([]byte("nope"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
