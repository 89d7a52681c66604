package types

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"
)

// Message is an unsigned on-chain message. BLS messages are carried in a
// block only in this form; their aggregate signature covers the whole set.
type Message struct {
	Version    uint64
	To         address.Address
	From       address.Address
	Sequence   uint64
	Value      big.Int
	GasLimit   int64
	GasFeeCap  big.Int
	GasPremium big.Int
	Method     abi.MethodNum
	Params     []byte

	cachedCid cid.Cid
}

// Cid computes (and caches) the DAG-CBOR CID of the unsigned message. This
// is the value signed over by both BLS aggregates and SECP signatures.
func (m *Message) Cid() cid.Cid {
	if m.cachedCid.Defined() {
		return m.cachedCid
	}
	c, err := cidOf(m)
	if err != nil {
		panic(err)
	}
	m.cachedCid = c
	return c
}

// SigningBytes returns the canonical bytes signed over by both BLS
// aggregation and SECP signatures: the message CID's multihash digest.
func (m *Message) SigningBytes() []byte {
	c := m.Cid()
	return c.Hash()
}

// MarshalCBOR encodes the message.
func (m *Message) MarshalCBOR() ([]byte, error) {
	type msgCBOR Message
	return marshalCBOR((*msgCBOR)(m))
}

// UnmarshalCBOR decodes a message and resets its CID cache.
func (m *Message) UnmarshalCBOR(data []byte) error {
	type msgCBOR Message
	var tmp msgCBOR
	if err := unmarshalCBOR(data, &tmp); err != nil {
		return err
	}
	*m = Message(tmp)
	m.cachedCid = cid.Undef
	return nil
}

// SignatureType identifies the curve/scheme a SignedMessage's signature was
// produced with.
type SignatureType int

const (
	SigTypeUnknown SignatureType = iota
	SigTypeSecp256k1
	SigTypeBLS
	// SigTypeDelegated covers Ethereum-style (f4/"delegated" actor)
	// signatures, only valid from the EVM-enabling network version onward.
	SigTypeDelegated
)

// SignedMessage pairs an unsigned Message with its signature. BLS-signed
// messages still carry a per-message Signature field on the wire (it is
// conventionally empty/ignored in favor of the block's BLS aggregate), but
// SECP and delegated messages are verified individually.
type SignedMessage struct {
	Message   Message
	Signature crypto.Signature
}

// Cid computes the DAG-CBOR CID of the signed message as stored/fetched
// over chain-exchange; note this differs from Message.Cid(), which is the
// value actually signed over.
func (sm *SignedMessage) Cid() (cid.Cid, error) {
	return cidOf(sm)
}

// SigType reports which signature scheme produced sm.Signature.
func (sm *SignedMessage) SigType() SignatureType {
	switch sm.Signature.Type {
	case crypto.SigTypeSecp256k1:
		return SigTypeSecp256k1
	case crypto.SigTypeBLS:
		return SigTypeBLS
	default:
		return SigTypeDelegated
	}
}
