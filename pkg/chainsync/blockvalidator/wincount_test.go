package blockvalidator

import (
	"testing"

	fbig "github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/require"
)

func TestComputeWinCountDeterministic(t *testing.T) {
	proof := []byte("some-vrf-output")
	miner := fbig.NewInt(10)
	total := fbig.NewInt(1000)

	a := computeWinCount(proof, miner, total)
	b := computeWinCount(proof, miner, total)
	require.Equal(t, a, b)
}

func TestComputeWinCountZeroTotalPower(t *testing.T) {
	require.EqualValues(t, 0, computeWinCount([]byte("x"), fbig.NewInt(0), fbig.NewInt(0)))
}

func TestComputeWinCountOverwhelmingPowerAlwaysWins(t *testing.T) {
	// A miner holding orders of magnitude more quality-adjusted power than
	// the rest of the network should essentially always claim at least one
	// win, regardless of the VRF proof's hash.
	proof := []byte("another-vrf-output")
	miner := fbig.NewInt(1_000_000)
	total := fbig.NewInt(1)

	require.GreaterOrEqual(t, computeWinCount(proof, miner, total), int64(1))
}
