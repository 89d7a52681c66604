// Package types defines the wire and in-memory data model for the chain
// synchronization core: block headers, tipsets, messages and the beacon
// entries that tie them to the randomness network.
package types

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// cborEncMode is the canonical encoding mode used for everything that needs
// a stable, content-addressed byte representation. We don't generate code
// with cbor-gen (see DESIGN.md); fxamacker/cbor's canonical mode gives us
// the same deterministic-map-order guarantee cbor-gen output relies on.
var cborEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

func marshalCBOR(v interface{}) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func unmarshalCBOR(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// MarshalCBOR canonically encodes v; exported for packages outside types
// (e.g. the AMT-backed message root builder) that need the exact same
// encoding this package's own CIDs are computed from.
func MarshalCBOR(v interface{}) ([]byte, error) { return marshalCBOR(v) }

// UnmarshalCBOR decodes data into v using the same codec MarshalCBOR uses.
func UnmarshalCBOR(data []byte, v interface{}) error { return unmarshalCBOR(data, v) }

// CidOf returns the DAG-CBOR/blake2b-256 CID of v.
func CidOf(v interface{}) (cid.Cid, error) { return cidOf(v) }

// CidOfBytes returns the DAG-CBOR/blake2b-256 CID of data, an
// already-encoded CBOR byte string, without re-marshaling it. Used by
// callers (like the AMT-backed message root builder) that hand off
// cbor-gen-encoded bytes produced outside this package's own codec.
func CidOfBytes(data []byte) (cid.Cid, error) {
	hash, err := mh.Sum(data, mh.BLAKE2B_MIN+31, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, hash), nil
}

// cidOf returns the DAG-CBOR CID of v, hashed with blake2b-256 — the same
// codec/hash pair Filecoin uses for on-chain objects.
func cidOf(v interface{}) (cid.Cid, error) {
	data, err := marshalCBOR(v)
	if err != nil {
		return cid.Undef, err
	}
	hash, err := mh.Sum(data, mh.BLAKE2B_MIN+31, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, hash), nil
}
