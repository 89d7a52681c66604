// Package randomness implements the canonical Filecoin randomness
// derivation used to draw tickets, election proofs and PoSt challenges from
// beacon entropy.
package randomness

import (
	"encoding/binary"

	"github.com/filecoin-project/go-state-types/abi"
	blake2b "github.com/minio/blake2b-simd"
)

// DomainSeparationTag distinguishes the purpose a randomness draw is used
// for, so the same beacon round can't be replayed across unrelated draws.
type DomainSeparationTag int64

const (
	_ DomainSeparationTag = iota
	TicketProduction
	ElectionProofProduction
	WinningPoStChallengeSeed
	WindowedPoStChallengeSeed
)

// Draw computes the canonical Filecoin randomness derivation: Blake2b-256
// over (tag, epoch, beaconData, entropy), each of tag and epoch encoded as
// an 8-byte big-endian i64. It is deterministic: equal inputs always yield
// equal output.
func Draw(beaconData []byte, tag DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) ([]byte, error) {
	h := blake2b.New256()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(tag))
	if _, err := h.Write(buf[:]); err != nil {
		return nil, err
	}

	binary.BigEndian.PutUint64(buf[:], uint64(epoch))
	if _, err := h.Write(buf[:]); err != nil {
		return nil, err
	}

	if _, err := h.Write(beaconData); err != nil {
		return nil, err
	}
	if _, err := h.Write(entropy); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}
