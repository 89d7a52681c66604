package net

import (
	"fmt"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func chainCid(t *testing.T, seed string) cid.Cid {
	t.Helper()
	hash, err := mh.Sum([]byte(seed), mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, hash)
}

// buildChain constructs a simple linear chain of n single-block tipsets,
// genesis first.
func buildChain(t *testing.T, n int) []*types.TipSet {
	t.Helper()
	miner, err := address.NewFromString("t01000")
	require.NoError(t, err)

	tipsets := make([]*types.TipSet, 0, n)
	parents := types.NewTipSetKey()
	for i := 0; i < n; i++ {
		h := &types.BlockHeader{
			Miner:           miner,
			Parents:         parents,
			ParentWeight:    big.NewInt(int64(i)),
			Height:          abi.ChainEpoch(i),
			ParentStateRoot: chainCid(t, fmt.Sprintf("state-%d", i)),
			Messages:        chainCid(t, fmt.Sprintf("messages-%d", i)),
			Timestamp:       uint64(i),
			ParentBaseFee:   big.NewInt(100),
		}
		ts := types.MustNewTipSet([]*types.BlockHeader{h})
		tipsets = append(tipsets, ts)
		parents = ts.Key()
	}
	return tipsets
}

func descending(tipsets []*types.TipSet) []*types.TipSet {
	out := make([]*types.TipSet, len(tipsets))
	for i, ts := range tipsets {
		out[len(tipsets)-1-i] = ts
	}
	return out
}

func TestValidateNetworkTipsets(t *testing.T) {
	chain := buildChain(t, 5) // t0..t4, ascending
	desc := descending(chain) // t4, t3, t2, t1, t0

	require.True(t, validateNetworkTipsets(desc, desc[0].Key()))
	require.False(t, validateNetworkTipsets(desc, chain[3].Key()))

	// Dropping a middle tipset breaks the parent chain.
	broken := []*types.TipSet{desc[0], desc[2], desc[3], desc[4]}
	require.False(t, validateNetworkTipsets(broken, desc[0].Key()))

	require.False(t, validateNetworkTipsets(nil, desc[0].Key()))
}
