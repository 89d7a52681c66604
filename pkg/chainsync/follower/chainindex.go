package follower

import (
	"context"
	"sync"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/blockvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// ChainIndex is the follower's production implementation of
// blockvalidator.ChainIndex (and, via its GetTipSet method, of
// LocalChainReader for the range syncer): every tipset the follower
// promotes to local heaviest is recorded here, keyed by TipsetKey, so
// later validation and fork-resolution lookups can walk backward through
// genuinely-synced history rather than only the in-flight working set.
type ChainIndex struct {
	mu      sync.RWMutex
	byKey   map[types.TipSetKey]*types.TipSet
	genesis *types.TipSet
}

// NewChainIndex seeds the index with genesis, the one tipset guaranteed
// reachable by every lookback and fork-resolution walk.
func NewChainIndex(genesis *types.TipSet) *ChainIndex {
	ci := &ChainIndex{byKey: map[types.TipSetKey]*types.TipSet{}, genesis: genesis}
	ci.byKey[genesis.Key()] = genesis
	return ci
}

// Put records ts as synced, reachable by key from now on.
func (ci *ChainIndex) Put(ts *types.TipSet) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.byKey[ts.Key()] = ts
}

// GetTipSet implements blockvalidator.ChainIndex and LocalChainReader.
func (ci *ChainIndex) GetTipSet(_ context.Context, key types.TipSetKey) (*types.TipSet, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	ts, ok := ci.byKey[key]
	if !ok {
		return nil, xerrors.Errorf("tipset %s: %w", key, blockvalidator.ErrTipsetParentNotFound)
	}
	return ts, nil
}

// GetLookbackTipSet implements blockvalidator.ChainIndex: walk backward
// from base via recorded parent links until reaching the first tipset at
// or below epoch. epoch is used as given: no lookback distance is
// subtracted from it, so for the block height the validator passes, the
// result is base itself and its parent state root.
func (ci *ChainIndex) GetLookbackTipSet(_ context.Context, base *types.TipSet, epoch abi.ChainEpoch) (*types.TipSet, cid.Cid, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	cur := base
	for cur.Epoch() > epoch {
		parent, ok := ci.byKey[cur.Parents()]
		if !ok {
			return nil, cid.Undef, xerrors.Errorf("walking back to epoch %d from %s: %w", epoch, cur.Key(), blockvalidator.ErrTipsetParentNotFound)
		}
		cur = parent
	}
	return cur, cur.ParentStateRoot(), nil
}

// LatestBeaconEntry implements blockvalidator.ChainIndex: walk backward
// from ts until a tipset carrying at least one beacon entry is found.
func (ci *ChainIndex) LatestBeaconEntry(_ context.Context, ts *types.TipSet) (types.BeaconEntry, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	cur := ts
	for {
		for _, b := range cur.Blocks() {
			if len(b.BeaconEntries) > 0 {
				return b.BeaconEntries[len(b.BeaconEntries)-1], nil
			}
		}
		if cur.Key().Equals(ci.genesis.Key()) {
			return types.BeaconEntry{}, xerrors.Errorf("no beacon entry reachable from genesis")
		}
		parent, ok := ci.byKey[cur.Parents()]
		if !ok {
			return types.BeaconEntry{}, xerrors.Errorf("walking back from %s for a beacon entry: %w", cur.Key(), blockvalidator.ErrTipsetParentNotFound)
		}
		cur = parent
	}
}
