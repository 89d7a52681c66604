package blockvalidator

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

type lookbackEntry struct {
	tipset    *types.TipSet
	stateRoot cid.Cid
}

// FakeChainIndex is a programmable ChainIndex test double: every tipset,
// lookback resolution, and beacon lookup is configured ahead of time
// rather than derived from a real synced chain.
type FakeChainIndex struct {
	tipsets  map[types.TipSetKey]*types.TipSet
	lookback map[types.TipSetKey]lookbackEntry
	beacons  map[types.TipSetKey]types.BeaconEntry
}

// NewFakeChainIndex returns an empty FakeChainIndex.
func NewFakeChainIndex() *FakeChainIndex {
	return &FakeChainIndex{
		tipsets:  map[types.TipSetKey]*types.TipSet{},
		lookback: map[types.TipSetKey]lookbackEntry{},
		beacons:  map[types.TipSetKey]types.BeaconEntry{},
	}
}

// SetTipSet registers ts under its own key.
func (f *FakeChainIndex) SetTipSet(ts *types.TipSet) {
	f.tipsets[ts.Key()] = ts
}

// SetLookback configures the lookback tipset and state root returned for
// base.
func (f *FakeChainIndex) SetLookback(base *types.TipSet, lookback *types.TipSet, stateRoot cid.Cid) {
	f.lookback[base.Key()] = lookbackEntry{tipset: lookback, stateRoot: stateRoot}
}

// SetBeacon configures the latest beacon entry returned for base.
func (f *FakeChainIndex) SetBeacon(base *types.TipSet, entry types.BeaconEntry) {
	f.beacons[base.Key()] = entry
}

// GetTipSet implements ChainIndex.
func (f *FakeChainIndex) GetTipSet(_ context.Context, key types.TipSetKey) (*types.TipSet, error) {
	ts, ok := f.tipsets[key]
	if !ok {
		return nil, fmt.Errorf("fake chain index: tipset %s: %w", key, ErrTipsetParentNotFound)
	}
	return ts, nil
}

// GetLookbackTipSet implements ChainIndex.
func (f *FakeChainIndex) GetLookbackTipSet(_ context.Context, base *types.TipSet, _ abi.ChainEpoch) (*types.TipSet, cid.Cid, error) {
	e, ok := f.lookback[base.Key()]
	if !ok {
		return nil, cid.Undef, fmt.Errorf("fake chain index: no lookback configured for base %s", base.Key())
	}
	return e.tipset, e.stateRoot, nil
}

// LatestBeaconEntry implements ChainIndex.
func (f *FakeChainIndex) LatestBeaconEntry(_ context.Context, ts *types.TipSet) (types.BeaconEntry, error) {
	e, ok := f.beacons[ts.Key()]
	if !ok {
		return types.BeaconEntry{}, fmt.Errorf("fake chain index: no beacon entry configured for %s", ts.Key())
	}
	return e, nil
}

var _ ChainIndex = (*FakeChainIndex)(nil)
