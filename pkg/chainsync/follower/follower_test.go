package follower

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/tipsetvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// alwaysAbsentBlockstore reports every CID as missing, forcing the
// follower's dispatch loop down the FetchTipset branch for any chain whose
// parent state it's asked about.
type alwaysAbsentBlockstore struct{}

func (alwaysAbsentBlockstore) Get(_ context.Context, _ cid.Cid) ([]byte, error) {
	return nil, fmt.Errorf("not found")
}
func (alwaysAbsentBlockstore) Put(_ context.Context, _ cid.Cid, _ []byte) error { return nil }
func (alwaysAbsentBlockstore) Has(_ context.Context, _ cid.Cid) (bool, error)   { return false, nil }

func newTestFollower(t *testing.T, genesis *types.TipSet) (*Follower, *badblock.Cache) {
	t.Helper()
	badBlocks, err := badblock.NewCache(16)
	require.NoError(t, err)

	tsValidator := tipsetvalidator.NewValidator(tipsetvalidator.Config{AllowableClockDrift: 365 * 24 * time.Hour}, badBlocks)

	f := NewFollower(
		alwaysAbsentBlockstore{},
		nil, // netCtx: unused by HandleIncoming/dispatch's skip-lighter-fork path
		nil, // rangeSyncer: unused here
		tsValidator,
		nil, // strictBlocks: unused because parent state is always absent
		nil, // forgivingBlocks: ditto
		badBlocks,
		NewChainIndex(genesis),
		genesis,
	)
	return f, badBlocks
}

func TestHandleIncomingDropsCachedBadBlock(t *testing.T) {
	genesisKey := types.NewTipSetKey()
	genesisBlock := newTestBlock(t, 0, genesisKey, "genesis")
	genesisTs, err := types.NewTipSet([]*types.BlockHeader{genesisBlock.Header})
	require.NoError(t, err)

	f, badBlocks := newTestFollower(t, genesisTs)

	incoming := newTestFullTipset(t, 10, genesisKey, "bad")
	badBlocks.Put(incoming.Blocks()[0].Cid(), "condemned for test")

	f.HandleIncoming(context.Background(), incoming)

	require.Equal(t, 0, f.tsMap.len())
}

func TestDispatchDoesNotChaseLighterFork(t *testing.T) {
	genesisKey := types.NewTipSetKey()
	genesisBlock := newTestBlock(t, 20, genesisKey, "genesis")
	genesisTs, err := types.NewTipSet([]*types.BlockHeader{genesisBlock.Header})
	require.NoError(t, err)

	f, _ := newTestFollower(t, genesisTs)

	lighter := newTestFullTipset(t, 5, genesisKey, "lighter")
	f.HandleIncoming(context.Background(), lighter)

	// Parent state is always reported absent, and the chain's epoch (5) is
	// not above the local heaviest (20), so dispatch must not spawn a
	// fetch task; the tipset should simply sit unclaimed in the map.
	require.Equal(t, 0, len(f.inFlight))
	require.Equal(t, 1, f.tsMap.len())
}
