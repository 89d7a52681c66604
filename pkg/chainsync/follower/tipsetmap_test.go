package follower

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func dummyFollowerCid(t *testing.T, seed string) cid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte(seed), multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, mh)
}

func mustFollowerAddr(t *testing.T) address.Address {
	t.Helper()
	a, err := address.NewIDAddress(101)
	require.NoError(t, err)
	return a
}

func newTestBlock(t *testing.T, height abi.ChainEpoch, parents types.TipSetKey, salt string) *types.Block {
	t.Helper()
	header := &types.BlockHeader{
		Miner:           mustFollowerAddr(t),
		Parents:         parents,
		Height:          height,
		ParentWeight:    big.NewInt(int64(height)),
		ParentStateRoot: dummyFollowerCid(t, "state-"+salt),
		Messages:        dummyFollowerCid(t, "msgs-"+salt),
		Timestamp:       uint64(height) * 30,
	}
	return &types.Block{Header: header}
}

func newTestFullTipset(t *testing.T, height abi.ChainEpoch, parents types.TipSetKey, salts ...string) *types.FullTipset {
	t.Helper()
	blocks := make([]*types.Block, 0, len(salts))
	for _, s := range salts {
		blocks = append(blocks, newTestBlock(t, height, parents, s))
	}
	fts, err := types.NewFullTipset(blocks)
	require.NoError(t, err)
	return fts
}

func TestTipsetMapMergeUnionsSameEpochAndParents(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a := newTestFullTipset(t, 10, genesisKey, "a")
	b := newTestFullTipset(t, 10, genesisKey, "b")

	tm.merge(a)
	tm.merge(b)

	require.Equal(t, 1, tm.len())
	snap := tm.snapshot()
	require.Len(t, snap[0].Blocks(), 2)
}

func TestTipsetMapMergeKeepsDistinctEpochsSeparate(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a := newTestFullTipset(t, 10, genesisKey, "a")
	b := newTestFullTipset(t, 11, a.Key(), "b")

	tm.merge(a)
	tm.merge(b)

	require.Equal(t, 2, tm.len())
}

func TestTipsetMapMergeDoesNotOrphanActiveParent(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a := newTestFullTipset(t, 10, genesisKey, "a")
	child := newTestFullTipset(t, 11, a.Key(), "child")
	aAgain := newTestFullTipset(t, 10, genesisKey, "a-dup")

	tm.merge(a)
	tm.merge(child)
	tm.merge(aAgain)

	// aAgain shares (epoch, parents) with a, but a is referenced as
	// child's parent, so the union must be dropped rather than applied.
	require.Equal(t, 2, tm.len())
	got, ok := tm.get(a.Key())
	require.True(t, ok)
	require.Len(t, got.Blocks(), 1)
}

func TestTipsetMapDropContainingRemovesMatchingTipsets(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a := newTestFullTipset(t, 10, genesisKey, "a")
	tm.merge(a)

	badCid := a.Blocks()[0].Cid()
	removed := tm.dropContaining(badCid)

	require.Equal(t, []types.TipSetKey{a.Key()}, removed)
	require.Equal(t, 0, tm.len())
}

func TestTipsetMapDropContainingNoMatchLeavesMapUntouched(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a := newTestFullTipset(t, 10, genesisKey, "a")
	tm.merge(a)

	removed := tm.dropContaining(dummyFollowerCid(t, "unrelated"))
	require.Empty(t, removed)
	require.Equal(t, 1, tm.len())
}
