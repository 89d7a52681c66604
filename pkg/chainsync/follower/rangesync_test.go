package follower

import (
	"context"
	"fmt"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	chainnet "github.com/filecoin-project/venus-chainsync/pkg/chainsync/net"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/peermgr"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var errNotFound = fmt.Errorf("tipset not found in fake local chain")

// fakeRequester serves chain_exchange_headers requests out of a
// pre-built epoch-ordered chain, letting tests drive the reverse walk
// without a real libp2p transport.
type fakeRequester struct {
	byStart map[string][]*types.BlockHeader
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{byStart: map[string][]*types.BlockHeader{}}
}

// serve registers the response chain_exchange_headers should return when
// asked to start from startKey: the headers in headers, one per tipset,
// descending by epoch.
func (f *fakeRequester) serve(startKey types.TipSetKey, headers []*types.BlockHeader) {
	f.byStart[startKey.String()] = headers
}

func (f *fakeRequester) SendChainExchangeRequest(_ peer.ID, req chainnet.ChainExchangeRequest, _ uint64) (*chainnet.ChainExchangeResponse, error) {
	startKey := types.NewTipSetKey(req.Start...)
	headers, ok := f.byStart[startKey.String()]
	if !ok {
		return &chainnet.ChainExchangeResponse{}, nil
	}
	n := req.RequestLen
	if uint64(len(headers)) < n {
		n = uint64(len(headers))
	}
	chain := make([]chainnet.TipsetBundle, 0, n)
	for i := uint64(0); i < n; i++ {
		chain = append(chain, chainnet.TipsetBundle{Blocks: []*types.BlockHeader{headers[i]}})
	}
	return &chainnet.ChainExchangeResponse{Chain: chain}, nil
}

func (f *fakeRequester) SendHelloRequest(_ peer.ID, _ chainnet.HelloRequest, _ uint64) (*chainnet.HelloResponse, error) {
	return &chainnet.HelloResponse{}, nil
}

func (f *fakeRequester) SendBitswapRequest(_ cid.Cid, _ uint64) ([]byte, error) {
	return nil, nil
}

func newTestNetContext(t *testing.T, requester chainnet.Requester) *chainnet.Context {
	t.Helper()
	peers := peermgr.New()
	peers.TouchPeer(peer.ID("fake-peer"))
	return chainnet.NewContext(requester, peers)
}

type fakeLocalChain struct {
	byKey map[string]*types.TipSet
}

func (f *fakeLocalChain) GetTipSet(_ context.Context, key types.TipSetKey) (*types.TipSet, error) {
	ts, ok := f.byKey[key.String()]
	if !ok {
		return nil, errNotFound
	}
	return ts, nil
}

func TestReverseWalkStraightChainNoFork(t *testing.T) {
	genesisKey := types.NewTipSetKey()
	h9 := newTestBlock(t, 9, genesisKey, "h9").Header
	h9Key := types.NewTipSetKey(h9.Cid())
	h10 := newTestBlock(t, 10, h9Key, "h10").Header
	h10Key := types.NewTipSetKey(h10.Cid())
	proposed := newTestBlock(t, 11, h10Key, "h11")

	requester := newFakeRequester()
	requester.serve(h10Key, []*types.BlockHeader{h10, h9})

	badBlocks, err := badblock.NewCache(16)
	require.NoError(t, err)

	netCtx := newTestNetContext(t, requester)
	local := &fakeLocalChain{byKey: map[string]*types.TipSet{}}
	rs := NewRangeSyncer(netCtx, badBlocks, local)

	proposedTs, err := types.NewTipSet([]*types.BlockHeader{proposed.Header})
	require.NoError(t, err)
	currentTs, err := types.NewTipSet([]*types.BlockHeader{h9})
	require.NoError(t, err)

	walked, err := rs.ReverseWalk(context.Background(), proposedTs, currentTs)
	require.NoError(t, err)
	require.True(t, walked[0].Epoch() == 11)
	require.True(t, walked[len(walked)-1].Parents().Equals(genesisKey) || walked[len(walked)-1].Epoch() == 9)
}

func TestReverseWalkTerminatesOnBadBlock(t *testing.T) {
	genesisKey := types.NewTipSetKey()
	h9 := newTestBlock(t, 9, genesisKey, "h9").Header
	h9Key := types.NewTipSetKey(h9.Cid())
	h10 := newTestBlock(t, 10, h9Key, "h10").Header
	h10Key := types.NewTipSetKey(h10.Cid())
	proposed := newTestBlock(t, 11, h10Key, "h11")

	requester := newFakeRequester()
	requester.serve(h10Key, []*types.BlockHeader{h10, h9})

	badBlocks, err := badblock.NewCache(16)
	require.NoError(t, err)
	badBlocks.Put(h10.Cid(), "poisoned for test")

	netCtx := newTestNetContext(t, requester)
	local := &fakeLocalChain{byKey: map[string]*types.TipSet{}}
	rs := NewRangeSyncer(netCtx, badBlocks, local)

	proposedTs, err := types.NewTipSet([]*types.BlockHeader{proposed.Header})
	require.NoError(t, err)
	currentTs, err := types.NewTipSet([]*types.BlockHeader{h9})
	require.NoError(t, err)

	_, err = rs.ReverseWalk(context.Background(), proposedTs, currentTs)
	require.Error(t, err)
}
