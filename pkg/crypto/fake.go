package crypto

import (
	"fmt"

	"github.com/filecoin-project/go-address"
	gocrypto "github.com/filecoin-project/go-state-types/crypto"
)

// FakeVerifier is a deterministic Verifier test double: every check passes
// unless the signer address or signature/proof bytes appear in the verifier's
// reject sets, in which case it returns an error. It never touches
// filecoin-ffi, so it is safe to use in tests that run without cgo.
type FakeVerifier struct {
	RejectSigners    map[address.Address]struct{}
	RejectSignatures map[string]struct{}
}

// NewFakeVerifier returns a FakeVerifier that accepts everything until
// configured otherwise.
func NewFakeVerifier() *FakeVerifier {
	return &FakeVerifier{
		RejectSigners:    map[address.Address]struct{}{},
		RejectSignatures: map[string]struct{}{},
	}
}

func (f *FakeVerifier) rejects(sig []byte) bool {
	_, ok := f.RejectSignatures[string(sig)]
	return ok
}

// VerifyBlockSignature implements Verifier.
func (f *FakeVerifier) VerifyBlockSignature(worker address.Address, _ []byte, sig *gocrypto.Signature) error {
	if _, ok := f.RejectSigners[worker]; ok {
		return fmt.Errorf("fake verifier: rejected signer %s", worker)
	}
	if sig == nil {
		return fmt.Errorf("fake verifier: nil block signature")
	}
	if f.rejects(sig.Data) {
		return fmt.Errorf("fake verifier: rejected block signature")
	}
	return nil
}

// VerifyVRF implements Verifier.
func (f *FakeVerifier) VerifyVRF(worker address.Address, _ []byte, proof []byte) error {
	if _, ok := f.RejectSigners[worker]; ok {
		return fmt.Errorf("fake verifier: rejected signer %s", worker)
	}
	if f.rejects(proof) {
		return fmt.Errorf("fake verifier: rejected VRF proof")
	}
	return nil
}

// VerifyAggregateSeckSignature implements Verifier.
func (f *FakeVerifier) VerifyAggregateSeckSignature(sig []byte, signers []address.Address, digests [][]byte) error {
	if len(signers) != len(digests) {
		return fmt.Errorf("fake verifier: %d signers but %d digests", len(signers), len(digests))
	}
	for _, s := range signers {
		if _, ok := f.RejectSigners[s]; ok {
			return fmt.Errorf("fake verifier: rejected signer %s", s)
		}
	}
	if f.rejects(sig) {
		return fmt.Errorf("fake verifier: rejected aggregate signature")
	}
	return nil
}

var _ Verifier = (*FakeVerifier)(nil)
