package blockvalidator

import (
	"context"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// ChainIndex is the local-chain lookup boundary the block validator needs:
// resolving a tipset by key, finding the lookback tipset used for
// power/eligibility checks, and the latest beacon entry known before a
// tipset. Its production implementation lives alongside the follower's
// tipset map; this package only depends on the interface.
type ChainIndex interface {
	// GetTipSet resolves key to a TipSet, or ErrTipsetParentNotFound if
	// it isn't present yet (a transient condition, not bad-block
	// evidence).
	GetTipSet(ctx context.Context, key types.TipSetKey) (*types.TipSet, error)

	// GetLookbackTipSet resolves the tipset (and its state root) a policy-
	// defined number of epochs before epoch, used for power/eligibility
	// checks that must not be influenced by the block under validation.
	GetLookbackTipSet(ctx context.Context, base *types.TipSet, epoch abi.ChainEpoch) (lookback *types.TipSet, lookbackStateRoot cid.Cid, err error)

	// LatestBeaconEntry returns the most recent beacon entry known at or
	// before ts.
	LatestBeaconEntry(ctx context.Context, ts *types.TipSet) (types.BeaconEntry, error)
}

// ErrTipsetParentNotFound is returned by ChainIndex.GetTipSet when the
// requested tipset hasn't been synced yet.
var ErrTipsetParentNotFound = newErr(KindParentNotFound, "tipset parent not found")
