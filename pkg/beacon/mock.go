package beacon

import (
	"context"
	"encoding/binary"

	blake2b "github.com/minio/blake2b-simd"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// MockBeacon is a deterministic, unchained Beacon with no network
// dependency: entry(round) = blake2b_256(round_be). It exists for tests
// and local/devnet configurations where a drand endpoint isn't available.
type MockBeacon struct{}

// NewMockBeacon constructs a MockBeacon.
func NewMockBeacon() *MockBeacon { return &MockBeacon{} }

func (m *MockBeacon) entryForRound(round uint64) types.BeaconEntry {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], round)
	sum := blake2b.Sum256(buf[:])
	return types.BeaconEntry{Round: round, Signature: sum[:]}
}

// Entry implements Beacon.
func (m *MockBeacon) Entry(_ context.Context, round uint64) (types.BeaconEntry, error) {
	return m.entryForRound(round), nil
}

// VerifyEntries implements Beacon. Each entry's signature is compared with
// the mock entry for the previous entry's round, starting from prev, and
// prev then advances to that entry, matching the reference mock's
// behavior of deriving every entry from the previous entry's round.
func (m *MockBeacon) VerifyEntries(entries []types.BeaconEntry, prev types.BeaconEntry) (bool, error) {
	for _, curr := range entries {
		expected := m.entryForRound(prev.Round)
		if string(expected.Signature) != string(curr.Signature) {
			return false, nil
		}
		prev = curr
	}
	return true, nil
}

// MaxBeaconRoundForEpoch implements Beacon: the mock's round cadence is
// 1:1 with epochs.
func (m *MockBeacon) MaxBeaconRoundForEpoch(_ network.Version, fil_epoch abi.ChainEpoch) uint64 {
	return uint64(fil_epoch)
}

// IsChained implements Beacon: the mock is unchained.
func (m *MockBeacon) IsChained() bool { return false }

var _ Beacon = (*MockBeacon)(nil)
