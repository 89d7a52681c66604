package crypto

import (
	"bytes"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// insecurePoStMagic is the sentinel proof payload accepted by
// InsecureWinningPoStVerifier, matching the "insecure-post" test mode
// fixtures carry instead of a real filecoin-ffi-generated proof.
var insecurePoStMagic = []byte("valid_proof")

// WinningPoStVerifier checks a miner's winning-PoSt proofs against the
// sector set the executor reports them eligible to prove over.
type WinningPoStVerifier interface {
	VerifyWinningPoSt(
		miner address.Address,
		randomness []byte,
		proofs []types.PoStProof,
		challengedSectors []abi.SectorNumber,
	) (bool, error)
}

// InsecureWinningPoStVerifier accepts any proof whose bytes equal the
// well-known "valid_proof" fixture, for devnets and tests built without
// filecoin-ffi.
type InsecureWinningPoStVerifier struct{}

// VerifyWinningPoSt implements WinningPoStVerifier.
func (InsecureWinningPoStVerifier) VerifyWinningPoSt(
	_ address.Address,
	_ []byte,
	proofs []types.PoStProof,
	_ []abi.SectorNumber,
) (bool, error) {
	for _, p := range proofs {
		if !bytes.Equal(p.ProofBytes, insecurePoStMagic) {
			return false, nil
		}
	}
	return true, nil
}

var _ WinningPoStVerifier = InsecureWinningPoStVerifier{}
