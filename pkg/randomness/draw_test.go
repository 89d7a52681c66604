package randomness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrawDeterministic(t *testing.T) {
	beacon := []byte("beacon-entropy")
	entropy := []byte{0xde, 0xad, 0xbe, 0xef}

	a, err := Draw(beacon, ElectionProofProduction, 1000, entropy)
	require.NoError(t, err)
	b, err := Draw(beacon, ElectionProofProduction, 1000, entropy)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a, 32)
}

func TestDrawVariesByTagEpochEntropy(t *testing.T) {
	beacon := []byte("beacon-entropy")
	entropy := []byte{0x01}

	base, err := Draw(beacon, TicketProduction, 10, entropy)
	require.NoError(t, err)

	byTag, err := Draw(beacon, ElectionProofProduction, 10, entropy)
	require.NoError(t, err)
	require.NotEqual(t, base, byTag)

	byEpoch, err := Draw(beacon, TicketProduction, 11, entropy)
	require.NoError(t, err)
	require.NotEqual(t, base, byEpoch)

	byEntropy, err := Draw(beacon, TicketProduction, 10, []byte{0x02})
	require.NoError(t, err)
	require.NotEqual(t, base, byEntropy)
}
