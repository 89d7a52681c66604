package follower

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/net"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// maxForkResolutionLength is the number of fork-side tipsets examined
// before giving up and declaring the fork longer than finality.
const maxForkResolutionLength = 500

// headerWindow bounds a single chain_exchange_headers request.
const headerWindow = 100

// LocalChainReader is the narrow local-store lookup the range syncer needs
// to walk the existing chain backward during fork resolution.
type LocalChainReader interface {
	GetTipSet(ctx context.Context, key types.TipSetKey) (*types.TipSet, error)
}

// RangeSyncer implements the reverse header walk and fork resolution used
// to turn a proposed head into a validated range of tipsets reaching back
// to the local chain.
type RangeSyncer struct {
	netCtx    *net.Context
	badBlocks *badblock.Cache
	local     LocalChainReader
}

// NewRangeSyncer constructs a RangeSyncer.
func NewRangeSyncer(netCtx *net.Context, badBlocks *badblock.Cache, local LocalChainReader) *RangeSyncer {
	return &RangeSyncer{netCtx: netCtx, badBlocks: badBlocks, local: local}
}

// ReverseWalk walks backward from proposedHead until reaching currentHead's
// epoch (or below), returning the chain of tipsets collected along the way
// (proposedHead first, oldest last). If the walk's endpoint disagrees with
// currentHead on parentage, fork resolution is run and its spliced result
// is returned instead.
func (r *RangeSyncer) ReverseWalk(ctx context.Context, proposedHead, currentHead *types.TipSet) ([]*types.TipSet, error) {
	collected := []*types.TipSet{proposedHead}
	oldest := proposedHead

	for oldest.Epoch() > currentHead.Epoch() {
		epochDiff := uint64(oldest.Epoch() - currentHead.Epoch())
		window := epochDiff
		if window > headerWindow {
			window = headerWindow
		}

		headers, err := r.netCtx.ChainExchangeHeaders(ctx, nil, oldest.Parents(), window)
		if err != nil {
			return nil, fmt.Errorf("reverse header walk: %w", err)
		}
		if len(headers) == 0 {
			break
		}

		for _, ts := range headers {
			if bad, badCid := r.containsBadBlock(ts); bad {
				descendants := cidsOf(collected)
				r.badBlocks.MarkChainContaining(badCid, descendants)
				return nil, fmt.Errorf("reverse header walk: tipset at epoch %d contains cached-bad block %s", ts.Epoch(), badCid)
			}
			collected = append(collected, ts)
		}
		oldest = headers[len(headers)-1]
	}

	if oldest.Epoch() == currentHead.Epoch() && oldest.Parents().Equals(currentHead.Parents()) {
		return collected, nil
	}

	forked, err := r.resolveFork(ctx, oldest, currentHead)
	if err != nil {
		return nil, err
	}
	return append(collected, forked...), nil
}

func (r *RangeSyncer) containsBadBlock(ts *types.TipSet) (bool, cid.Cid) {
	for _, c := range ts.Cids() {
		if r.badBlocks.Contains(c) {
			return true, c
		}
	}
	return false, cid.Undef
}

func cidsOf(tipsets []*types.TipSet) []cid.Cid {
	var out []cid.Cid
	for _, ts := range tipsets {
		out = append(out, ts.Cids()...)
	}
	return out
}

// resolveFork requests fork-side tipsets from the network in windows of
// headerWindow, walking the local chain backward in lockstep, until a
// common ancestor is found, the local chain hits genesis, the fork side
// hits genesis, or maxForkResolutionLength tipsets have been examined.
func (r *RangeSyncer) resolveFork(ctx context.Context, forkHead, localHead *types.TipSet) ([]*types.TipSet, error) {
	var forkTipsets []*types.TipSet
	cursor := forkHead.Parents()
	localCur := localHead
	examined := 0

	for examined < maxForkResolutionLength {
		headers, err := r.netCtx.ChainExchangeHeaders(ctx, nil, cursor, headerWindow)
		if err != nil {
			return nil, fmt.Errorf("fork resolution: %w", err)
		}
		if len(headers) == 0 {
			return nil, ErrForkLengthExceedsFinality
		}

		for _, fts := range headers {
			examined++
			forkTipsets = append(forkTipsets, fts)

			for localCur.Epoch() > fts.Epoch() {
				if localCur.Epoch() == 0 {
					return nil, ErrForkAtGenesis
				}
				parent, err := r.local.GetTipSet(ctx, localCur.Parents())
				if err != nil {
					return nil, fmt.Errorf("fork resolution: walking local chain: %w", err)
				}
				localCur = parent
			}

			if localCur.Epoch() == fts.Epoch() {
				if localCur.Key().Equals(fts.Key()) {
					return forkTipsets, nil
				}
				if localCur.Epoch() == 0 {
					return nil, ErrForkAtGenesis
				}
			}

			if fts.Epoch() == 0 {
				return nil, ErrForkAtGenesis
			}
			if examined >= maxForkResolutionLength {
				return nil, ErrForkLengthExceedsFinality
			}
		}
		cursor = headers[len(headers)-1].Parents()
	}

	return nil, ErrForkLengthExceedsFinality
}
