package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// FakeExecutor is a programmable, in-memory Executor test double: every
// tipset's transition result, actor, and miner fact is configured ahead of
// time rather than computed by running the FVM.
type FakeExecutor struct {
	mu sync.Mutex

	transitions map[string]transitionResult
	actors      map[string]*ActorState
	power       map[string]powerEntry
	eligible    map[string]bool
	slashed     map[string]bool
	sectors     map[string][]SectorInfo
	workAddrs   map[string]address.Address
	baseFee     big.Int
}

type transitionResult struct {
	stateRoot, receiptRoot cid.Cid
}

type powerEntry struct {
	miner, total *PowerClaim
}

// NewFakeExecutor returns a FakeExecutor with every lookup empty; callers
// populate it via the Set* methods before exercising code under test.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		transitions: map[string]transitionResult{},
		actors:      map[string]*ActorState{},
		power:       map[string]powerEntry{},
		eligible:    map[string]bool{},
		slashed:     map[string]bool{},
		sectors:     map[string][]SectorInfo{},
		workAddrs:   map[string]address.Address{},
		baseFee:     big.Zero(),
	}
}

// SetTipsetState configures the transition result returned for ts.Key().
func (f *FakeExecutor) SetTipsetState(ts *types.TipSet, stateRoot, receiptRoot cid.Cid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[ts.Key().String()] = transitionResult{stateRoot, receiptRoot}
}

// SetActor configures the actor returned for (addr, stateRoot).
func (f *FakeExecutor) SetActor(addr address.Address, stateRoot cid.Cid, actor *ActorState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actors[actorKey(addr, stateRoot)] = actor
}

// SetPower configures the (miner_claim, total_claim) pair for (stateRoot, miner).
func (f *FakeExecutor) SetPower(stateRoot cid.Cid, miner address.Address, minerClaim, totalClaim *PowerClaim) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.power[actorKey(miner, stateRoot)] = powerEntry{minerClaim, totalClaim}
}

// SetEligibleToMine configures the eligible_to_mine verdict for miner atop base.
func (f *FakeExecutor) SetEligibleToMine(miner address.Address, base *types.TipSet, eligible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eligible[fmt.Sprintf("%s/%s", miner, base.Key())] = eligible
}

// SetSlashed configures whether miner is reported slashed as of stateRoot.
func (f *FakeExecutor) SetSlashed(miner address.Address, stateRoot cid.Cid, slashed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slashed[actorKey(miner, stateRoot)] = slashed
}

// SetSectorsForWinningPoSt configures the sector set returned for
// (stateRoot, miner).
func (f *FakeExecutor) SetSectorsForWinningPoSt(stateRoot cid.Cid, miner address.Address, sectors []SectorInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sectors[actorKey(miner, stateRoot)] = sectors
}

// SetWorkAddr configures the worker key address returned for (stateRoot, miner).
func (f *FakeExecutor) SetWorkAddr(stateRoot cid.Cid, miner address.Address, worker address.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workAddrs[actorKey(miner, stateRoot)] = worker
}

// SetBaseFee configures the value ComputeBaseFee always returns.
func (f *FakeExecutor) SetBaseFee(fee big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseFee = fee
}

func actorKey(addr address.Address, root cid.Cid) string {
	return addr.String() + "/" + root.String()
}

// TipsetState implements Executor.
func (f *FakeExecutor) TipsetState(_ context.Context, ts *types.TipSet) (cid.Cid, cid.Cid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.transitions[ts.Key().String()]
	if !ok {
		return cid.Undef, cid.Undef, fmt.Errorf("fake executor: no transition configured for tipset %s", ts.Key())
	}
	return r.stateRoot, r.receiptRoot, nil
}

// GetActor implements Executor.
func (f *FakeExecutor) GetActor(_ context.Context, addr address.Address, stateRoot cid.Cid) (*ActorState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actors[actorKey(addr, stateRoot)], nil
}

// GetPower implements Executor.
func (f *FakeExecutor) GetPower(_ context.Context, stateRoot cid.Cid, miner address.Address) (*PowerClaim, *PowerClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.power[actorKey(miner, stateRoot)]
	if !ok {
		return nil, nil, fmt.Errorf("fake executor: no power configured for miner %s", miner)
	}
	return e.miner, e.total, nil
}

// EligibleToMine implements Executor.
func (f *FakeExecutor) EligibleToMine(_ context.Context, miner address.Address, base, _ *types.TipSet) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eligible[fmt.Sprintf("%s/%s", miner, base.Key())], nil
}

// IsMinerSlashed implements Executor.
func (f *FakeExecutor) IsMinerSlashed(_ context.Context, miner address.Address, stateRoot cid.Cid) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slashed[actorKey(miner, stateRoot)], nil
}

// GetSectorsForWinningPoSt implements Executor.
func (f *FakeExecutor) GetSectorsForWinningPoSt(_ context.Context, _ network.Version, stateRoot cid.Cid, miner address.Address, _ []byte) ([]SectorInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sectors[actorKey(miner, stateRoot)], nil
}

// GetMinerWorkAddr implements Executor.
func (f *FakeExecutor) GetMinerWorkAddr(_ context.Context, stateRoot cid.Cid, miner address.Address) (address.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workAddrs[actorKey(miner, stateRoot)]
	if !ok {
		return address.Undef, fmt.Errorf("fake executor: no work address configured for miner %s", miner)
	}
	return w, nil
}

// ComputeBaseFee implements Executor.
func (f *FakeExecutor) ComputeBaseFee(_ context.Context, _ *types.TipSet, _ abi.ChainEpoch) (big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseFee, nil
}

var _ Executor = (*FakeExecutor)(nil)
