package beacon

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-state-types/network"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func TestMockBeaconEntryDeterministic(t *testing.T) {
	b := NewMockBeacon()
	e1, err := b.Entry(context.Background(), 42)
	require.NoError(t, err)
	e2, err := b.Entry(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, e1, e2)
	require.Equal(t, uint64(42), e1.Round)
}

func TestMockBeaconVerifyEntries(t *testing.T) {
	b := NewMockBeacon()
	prev, err := b.Entry(context.Background(), 10)
	require.NoError(t, err)
	next, err := b.Entry(context.Background(), prev.Round)
	require.NoError(t, err)

	ok, err := b.VerifyEntries([]types.BeaconEntry{next}, prev)
	require.NoError(t, err)
	require.True(t, ok)

	tampered := next
	tampered.Signature = append([]byte{}, tampered.Signature...)
	tampered.Signature[0] ^= 0xff
	ok, err = b.VerifyEntries([]types.BeaconEntry{tampered}, prev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScheduleBeaconForVersion(t *testing.T) {
	early := NewMockBeacon()
	late := NewMockBeacon()
	sched := Schedule{
		{Start: 0, Beacon: early},
		{Start: network.Version16, Beacon: late},
	}

	require.Same(t, Beacon(early), sched.BeaconForVersion(network.Version10))
	require.Same(t, Beacon(late), sched.BeaconForVersion(network.Version18))
}

func TestScheduleBeaconForVersionPanicsWhenUncovered(t *testing.T) {
	sched := Schedule{{Start: network.Version16, Beacon: NewMockBeacon()}}
	require.Panics(t, func() {
		sched.BeaconForVersion(network.Version0)
	})
}
