package state

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func dummyCid(t *testing.T, seed string) cid.Cid {
	t.Helper()
	hash, err := mh.Sum([]byte(seed), mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, hash)
}

func mustAddr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.NewFromString(s)
	require.NoError(t, err)
	return a
}

func testTipset(t *testing.T) *types.TipSet {
	t.Helper()
	miner := mustAddr(t, "t01000")
	header := &types.BlockHeader{
		Miner:           miner,
		Parents:         types.NewTipSetKey(dummyCid(t, "parent")),
		ParentWeight:    big.NewInt(10),
		Height:          5,
		ParentStateRoot: dummyCid(t, "state"),
		Messages:        dummyCid(t, "messages"),
		Timestamp:       1000,
		ParentBaseFee:   big.NewInt(100),
	}
	return types.MustNewTipSet([]*types.BlockHeader{header})
}

func TestFakeExecutorTipsetState(t *testing.T) {
	exec := NewFakeExecutor()
	ts := testTipset(t)

	_, _, err := exec.TipsetState(context.Background(), ts)
	require.Error(t, err)

	wantState := dummyCid(t, "result-state")
	wantReceipt := dummyCid(t, "result-receipt")
	exec.SetTipsetState(ts, wantState, wantReceipt)

	gotState, gotReceipt, err := exec.TipsetState(context.Background(), ts)
	require.NoError(t, err)
	require.Equal(t, wantState, gotState)
	require.Equal(t, wantReceipt, gotReceipt)
}

func TestFakeExecutorMinerFacts(t *testing.T) {
	exec := NewFakeExecutor()
	miner := mustAddr(t, "t01000")
	worker := mustAddr(t, "t01001")
	root := dummyCid(t, "state")

	exec.SetWorkAddr(root, miner, worker)
	got, err := exec.GetMinerWorkAddr(context.Background(), root, miner)
	require.NoError(t, err)
	require.Equal(t, worker, got)

	exec.SetSlashed(miner, root, true)
	slashed, err := exec.IsMinerSlashed(context.Background(), miner, root)
	require.NoError(t, err)
	require.True(t, slashed)

	exec.SetSectorsForWinningPoSt(root, miner, []SectorInfo{{SectorNumber: 7}})
	sectors, err := exec.GetSectorsForWinningPoSt(context.Background(), 18, root, miner, []byte("rand"))
	require.NoError(t, err)
	require.Len(t, sectors, 1)
	require.EqualValues(t, 7, sectors[0].SectorNumber)
}
