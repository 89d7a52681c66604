// Package state defines the executor boundary chain sync treats as an
// external collaborator: everything the block validator needs to know
// about the result of running a tipset's state transition, without this
// module ever running the FVM itself.
package state

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// ActorState is the subset of an actor's state chain sync ever needs to
// look at directly: its balance and code, resolved by TipsetState's
// returned root.
type ActorState struct {
	Code    cid.Cid
	Head    cid.Cid
	Nonce   uint64
	Balance big.Int
}

// PowerClaim is one side of get_power's (miner_claim, total_claim) pair.
type PowerClaim struct {
	RawBytePower    big.Int
	QualityAdjPower big.Int
}

// SectorInfo is the minimal shape get_sectors_for_winning_post returns per
// sector a miner was challenged on.
type SectorInfo struct {
	SectorNumber abi.SectorNumber
	SealedCID    cid.Cid
	SectorType   abi.RegisteredSealProof
}

// Executor is the narrow state-transition boundary the block validator
// consumes. Its production implementation runs the FVM against a
// blockstore; that implementation is explicitly out of this module's
// scope (see the package doc), so only the interface and a deterministic
// test double live here.
type Executor interface {
	// TipsetState runs ts's state transition (or returns its cached
	// result), yielding the resulting state root and receipt root.
	TipsetState(ctx context.Context, ts *types.TipSet) (stateRoot, receiptRoot cid.Cid, err error)

	// GetActor looks up addr's actor state as of state. A nil ActorState
	// with a nil error means the actor does not exist.
	GetActor(ctx context.Context, addr address.Address, stateRoot cid.Cid) (*ActorState, error)

	// GetPower returns (miner_claim, total_claim) as of state. If miner is
	// the zero address, only the total claim is meaningful and
	// miner_claim is nil.
	GetPower(ctx context.Context, stateRoot cid.Cid, miner address.Address) (minerClaim, totalClaim *PowerClaim, err error)

	// EligibleToMine reports whether miner may mine atop base, using
	// lookback's power table.
	EligibleToMine(ctx context.Context, miner address.Address, base, lookback *types.TipSet) (bool, error)

	// IsMinerSlashed reports whether miner has been slashed as of state.
	IsMinerSlashed(ctx context.Context, miner address.Address, stateRoot cid.Cid) (bool, error)

	// GetSectorsForWinningPoSt resolves the sector set miner was
	// challenged to prove over at nv, given the winning-PoSt randomness
	// rand.
	GetSectorsForWinningPoSt(ctx context.Context, nv network.Version, stateRoot cid.Cid, miner address.Address, rand []byte) ([]SectorInfo, error)

	// GetMinerWorkAddr resolves miner's current worker key address as of
	// state.
	GetMinerWorkAddr(ctx context.Context, stateRoot cid.Cid, miner address.Address) (address.Address, error)

	// ComputeBaseFee derives the next block's base fee from parent,
	// switching to the smoke-upgrade formula at smokeHeight.
	ComputeBaseFee(ctx context.Context, parent *types.TipSet, smokeHeight abi.ChainEpoch) (big.Int, error)
}
