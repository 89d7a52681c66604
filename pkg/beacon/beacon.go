// Package beacon defines the randomness-beacon boundary chain sync depends
// on: verifying the drand entries a block carries and resolving, for a
// given epoch, which beacon variant (chained or unchained) is in effect.
package beacon

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var log = logging.Logger("beacon")

// Beacon is the narrow interface chain sync needs from a randomness beacon:
// fetch a round's entry and verify a run of entries against their
// predecessor. It says nothing about how entries are sourced (drand client,
// mock, cache) so validators can be tested against a deterministic double.
type Beacon interface {
	// Entry fetches the entry for round, blocking until it is available or
	// ctx is done.
	Entry(ctx context.Context, round uint64) (types.BeaconEntry, error)

	// VerifyEntries checks a chain of entries against prev, the last
	// trusted entry before them. Chained beacons verify signature(round,
	// prev_sig); unchained beacons verify signature(round) alone.
	VerifyEntries(entries []types.BeaconEntry, prev types.BeaconEntry) (bool, error)

	// MaxBeaconRoundForEpoch returns the highest beacon round a block at
	// fil_epoch is permitted to carry, given nv's beacon cadence.
	MaxBeaconRoundForEpoch(nv network.Version, fil_epoch abi.ChainEpoch) uint64

	// IsChained reports whether this beacon's entries commit to their
	// predecessor's signature (drand "chained" mode) or stand alone
	// ("unchained"/League of Entropy quicknet mode).
	IsChained() bool
}

// Schedule resolves, for a given network version, which Beacon
// implementation is authoritative — mirroring how drand's round cadence and
// signature scheme have changed across upgrades.
type Schedule []ScheduleEntry

// ScheduleEntry activates Beacon from Start (inclusive) onward.
type ScheduleEntry struct {
	Start  network.Version
	Beacon Beacon
}

// BeaconForVersion returns the schedule entry in effect at nv: the latest
// entry whose Start is <= nv. Panics if the schedule is empty or nv
// precedes every entry — a misconfigured schedule, not a runtime condition.
func (s Schedule) BeaconForVersion(nv network.Version) Beacon {
	var chosen *ScheduleEntry
	for i := range s {
		e := &s[i]
		if e.Start > nv {
			continue
		}
		if chosen == nil || e.Start > chosen.Start {
			chosen = e
		}
	}
	if chosen == nil {
		panic("beacon: no schedule entry covers network version")
	}
	return chosen.Beacon
}
