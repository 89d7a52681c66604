package blockvalidator

import (
	"math"
	"math/big"

	fbig "github.com/filecoin-project/go-state-types/big"
	blake2b "github.com/minio/blake2b-simd"
)

// expectedLeadersPerEpoch is the network-wide target number of block
// producers elected per epoch, the lambda scale factor for the Poisson
// draw below.
const expectedLeadersPerEpoch = 5

// computeWinCount reimplements Filecoin's Expected Consensus leader-count
// derivation: the VRF proof's hash gives a single uniform sample in
// [0, 1), which is used to invert a Poisson CDF whose rate is scaled by
// the miner's share of network power. It is deterministic in the proof
// bytes and the power ratio alone.
func computeWinCount(vrfProof []byte, minerPower, totalPower fbig.Int) int64 {
	if totalPower.IsZero() || totalPower.Int.Sign() <= 0 {
		return 0
	}

	h := blake2b.Sum256(vrfProof)
	sampleInt := new(big.Int).SetBytes(h[:])
	sampleMax := new(big.Int).Lsh(big.NewInt(1), 256)
	sample, _ := new(big.Float).Quo(
		new(big.Float).SetInt(sampleInt),
		new(big.Float).SetInt(sampleMax),
	).Float64()

	powerRatio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(minerPower.Int),
		new(big.Float).SetInt(totalPower.Int),
	).Float64()
	lambda := powerRatio * expectedLeadersPerEpoch

	cumulative := 0.0
	term := math.Exp(-lambda)
	for k := int64(0); ; k++ {
		cumulative += term
		if sample < cumulative || k > 1<<16 {
			return k
		}
		term *= lambda / float64(k+1)
	}
}
