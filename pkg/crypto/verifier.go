// Package crypto is the narrow signature/VRF verification boundary the
// block validator calls through. It mirrors how pkg/vm/fvm.go keeps
// filecoin-ffi behind the ffi_cgo.Externs interface: the cgo binding itself
// is out of scope here, so this package supplies the interface and a
// deterministic test double, not a production implementation.
package crypto

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
)

// Verifier is everything the block validator needs from a production
// filecoin-ffi binding: block signature checks, VRF checks (tickets and
// election proofs both use VRFs, distinguished only by their domain
// separation tag), and BLS aggregate verification over a block's BLS
// messages.
type Verifier interface {
	// VerifyBlockSignature checks sig over msg as signed by worker.
	VerifyBlockSignature(worker address.Address, msg []byte, sig *crypto.Signature) error

	// VerifyVRF checks that proof is a valid VRF output of input under
	// worker's VRF key (the worker's BLS public key, resolved by the
	// caller via the executor boundary).
	VerifyVRF(worker address.Address, input []byte, proof []byte) error

	// VerifyAggregateSeckSignature verifies sig as a BLS aggregate over
	// one digest per signer in signers, each signing the corresponding
	// entry of digests.
	VerifyAggregateSeckSignature(sig []byte, signers []address.Address, digests [][]byte) error
}
