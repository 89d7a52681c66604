package tipsetvalidator

import (
	"testing"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func mkCid(t *testing.T, seed string) cid.Cid {
	t.Helper()
	hash, err := mh.Sum([]byte(seed), mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, hash)
}

func mkFullTipset(t *testing.T, height abi.ChainEpoch, timestamp uint64) *types.FullTipset {
	t.Helper()
	miner, err := address.NewFromString("t01000")
	require.NoError(t, err)
	header := &types.BlockHeader{
		Miner:           miner,
		Parents:         types.NewTipSetKey(mkCid(t, "parent")),
		ParentWeight:    big.NewInt(1),
		Height:          height,
		ParentStateRoot: mkCid(t, "state"),
		Messages:        mkCid(t, "messages"),
		Timestamp:       timestamp,
		ParentBaseFee:   big.NewInt(100),
	}
	return types.MustNewFullTipset([]*types.Block{{Header: header}})
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	cache, err := badblock.NewCache(8)
	require.NoError(t, err)
	return NewValidator(DefaultConfig(), cache)
}

func TestValidatorAcceptsFreshTipset(t *testing.T) {
	v := newTestValidator(t)
	v.now = func() time.Time { return time.Unix(1000, 0) }

	fts := mkFullTipset(t, 10, 995)
	require.NoError(t, v.Validate(fts))
}

func TestValidatorRejectsBadBlock(t *testing.T) {
	v := newTestValidator(t)
	v.now = func() time.Time { return time.Unix(1000, 0) }
	fts := mkFullTipset(t, 10, 995)

	v.badBlocks.Put(fts.Cids()[0], "equivocation")
	err := v.Validate(fts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
}

func TestValidatorRejectsFutureTimestamp(t *testing.T) {
	v := newTestValidator(t)
	v.now = func() time.Time { return time.Unix(1000, 0) }
	fts := mkFullTipset(t, 10, 2000)

	err := v.Validate(fts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ahead of local clock")
}
