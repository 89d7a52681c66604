// Package follower implements the chain follower state machine: the
// long-lived task that consumes network and direct-tipset events, tracks
// candidate chains in an in-memory tipset map, and dispatches fetch and
// validate tasks to advance the local heaviest tipset.
package follower

import (
	"sync"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var log = logging.Logger("chainsync/follower")

// tipsetMap is the follower's in-memory working set: every full tipset
// seen but not yet validated/promoted or rejected, keyed by its TipsetKey.
type tipsetMap struct {
	mu sync.Mutex
	m  map[types.TipSetKey]*types.FullTipset
}

func newTipsetMap() *tipsetMap {
	return &tipsetMap{m: map[types.TipSetKey]*types.FullTipset{}}
}

// merge folds incoming into the map. If an existing entry shares
// incoming's (epoch, parents), their blocks are unioned into one tipset
// (deduplicating by block CID) — unless the existing entry is referenced
// as some other tipset's parent, in which case it must not be mutated out
// from under that reference, and incoming is dropped.
func (tm *tipsetMap) merge(incoming *types.FullTipset) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for key, existing := range tm.m {
		if key.Equals(incoming.Key()) {
			continue
		}
		if existing.Epoch() != incoming.Epoch() || !existing.Parents().Equals(incoming.Parents()) {
			continue
		}
		if tm.isReferencedAsParent(key) {
			log.Debugw("dropping mergeable tipset referenced as active parent", "key", key)
			return
		}
		merged := unionFullTipsets(existing, incoming)
		delete(tm.m, key)
		tm.m[merged.Key()] = merged
		return
	}

	tm.m[incoming.Key()] = incoming
}

// isReferencedAsParent reports whether any tipset in the map names key as
// its parents, i.e. key is an active ancestor that must not be orphaned by
// a union rewrite.
func (tm *tipsetMap) isReferencedAsParent(key types.TipSetKey) bool {
	for _, ts := range tm.m {
		if ts.Parents().Equals(key) {
			return true
		}
	}
	return false
}

func unionFullTipsets(a, b *types.FullTipset) *types.FullTipset {
	seen := map[string]*types.Block{}
	for _, blk := range a.Blocks() {
		seen[string(blk.Cid().Bytes())] = blk
	}
	for _, blk := range b.Blocks() {
		seen[string(blk.Cid().Bytes())] = blk
	}
	blocks := make([]*types.Block, 0, len(seen))
	for _, blk := range seen {
		blocks = append(blocks, blk)
	}
	return types.MustNewFullTipset(blocks)
}

// get returns the full tipset registered under key, if any.
func (tm *tipsetMap) get(key types.TipSetKey) (*types.FullTipset, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	ts, ok := tm.m[key]
	return ts, ok
}

// delete removes key from the map, e.g. after validation promotes it or a
// bad-block event condemns it.
func (tm *tipsetMap) delete(key types.TipSetKey) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.m, key)
}

// dropContaining removes every tipset in the map that contains blockCid
// among its blocks, returning the keys it removed.
func (tm *tipsetMap) dropContaining(blockCid cid.Cid) []types.TipSetKey {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var removed []types.TipSetKey
	for key, ts := range tm.m {
		for _, blk := range ts.Blocks() {
			if blk.Cid().Equals(blockCid) {
				removed = append(removed, key)
				delete(tm.m, key)
				break
			}
		}
	}
	return removed
}

// snapshot returns every full tipset currently tracked, a stable copy safe
// to range over after releasing the lock.
func (tm *tipsetMap) snapshot() []*types.FullTipset {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := make([]*types.FullTipset, 0, len(tm.m))
	for _, ts := range tm.m {
		out = append(out, ts)
	}
	return out
}

// len reports how many tipsets the map currently tracks.
func (tm *tipsetMap) len() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.m)
}
