package types

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"
)

// Ticket is a VRF proof used to elect the parent ticket for randomness
// draws; it carries no other payload.
type Ticket struct {
	VRFProof []byte
}

// ElectionProof is the VRF output a miner includes to claim a number of
// wins at an epoch, alongside the proof itself.
type ElectionProof struct {
	WinCount int64
	VRFProof []byte
}

// BeaconEntry is one randomness round published by the external beacon
// (Drand). Chained beacon networks sign each entry over (round,
// prev_signature); unchained networks sign over round alone — which
// variant applies is a property of the beacon schedule, not the entry.
type BeaconEntry struct {
	Round     uint64
	Signature []byte
}

// PoStProof is one winning-PoSt proof blob, tagged with its registered
// proof type.
type PoStProof struct {
	PoStProof  abi.RegisteredPoStProof
	ProofBytes []byte
}

// BlockHeader is the immutable, signed header of a single block. It never
// carries message bodies directly — those are reachable only via the
// Messages root (an AMT of {bls, secp} CID lists) and are fetched
// separately by chain-exchange or bitswap.
type BlockHeader struct {
	Miner address.Address

	Ticket        *Ticket
	ElectionProof *ElectionProof

	BeaconEntries []BeaconEntry

	WinPoStProof []PoStProof

	Parents TipSetKey

	ParentWeight big.Int

	Height abi.ChainEpoch

	ParentStateRoot cid.Cid

	ParentMessageReceipts cid.Cid

	Messages cid.Cid

	BLSAggregate *crypto.Signature

	Timestamp uint64

	BlockSig *crypto.Signature

	ParentBaseFee big.Int

	cachedCid cid.Cid
}

// Epoch is an alias over Height kept for readability at call sites that
// think in terms of "epoch" rather than the on-wire "height" field name.
func (b *BlockHeader) Epoch() abi.ChainEpoch { return b.Height }

// SigningBytes returns the digest the miner's block signature covers: the
// CID of the header's CBOR encoding with BlockSig cleared, so the
// signature never signs over itself.
func (b *BlockHeader) SigningBytes() ([]byte, error) {
	fields := b.cborFields()
	fields.BlockSig = nil
	c, err := cidOf(fields)
	if err != nil {
		return nil, err
	}
	return c.Hash(), nil
}

// Cid computes (and caches) the DAG-CBOR CID of the header.
func (b *BlockHeader) Cid() cid.Cid {
	if b.cachedCid.Defined() {
		return b.cachedCid
	}
	c, err := cidOf(b.cborFields())
	if err != nil {
		panic(err)
	}
	b.cachedCid = c
	return c
}

// cborFields is a struct-of-slices view used purely to drive a stable
// encoding without exporting the CID cache field.
type blockHeaderCBOR struct {
	Miner                 address.Address
	Ticket                *Ticket
	ElectionProof         *ElectionProof
	BeaconEntries         []BeaconEntry
	WinPoStProof          []PoStProof
	Parents               TipSetKey
	ParentWeight          big.Int
	Height                abi.ChainEpoch
	ParentStateRoot       cid.Cid
	ParentMessageReceipts cid.Cid
	Messages              cid.Cid
	BLSAggregate          *crypto.Signature
	Timestamp             uint64
	BlockSig              *crypto.Signature
	ParentBaseFee         big.Int
}

func (b *BlockHeader) cborFields() blockHeaderCBOR {
	return blockHeaderCBOR{
		Miner:                 b.Miner,
		Ticket:                b.Ticket,
		ElectionProof:         b.ElectionProof,
		BeaconEntries:         b.BeaconEntries,
		WinPoStProof:          b.WinPoStProof,
		Parents:               b.Parents,
		ParentWeight:          b.ParentWeight,
		Height:                b.Height,
		ParentStateRoot:       b.ParentStateRoot,
		ParentMessageReceipts: b.ParentMessageReceipts,
		Messages:              b.Messages,
		BLSAggregate:          b.BLSAggregate,
		Timestamp:             b.Timestamp,
		BlockSig:              b.BlockSig,
		ParentBaseFee:         b.ParentBaseFee,
	}
}

// MarshalCBOR encodes the header, excluding the lazily-computed CID cache.
func (b *BlockHeader) MarshalCBOR() ([]byte, error) {
	return marshalCBOR(b.cborFields())
}

// UnmarshalCBOR decodes a header and resets its CID cache.
func (b *BlockHeader) UnmarshalCBOR(data []byte) error {
	var fields blockHeaderCBOR
	if err := unmarshalCBOR(data, &fields); err != nil {
		return err
	}
	*b = BlockHeader{
		Miner:                 fields.Miner,
		Ticket:                fields.Ticket,
		ElectionProof:         fields.ElectionProof,
		BeaconEntries:         fields.BeaconEntries,
		WinPoStProof:          fields.WinPoStProof,
		Parents:               fields.Parents,
		ParentWeight:          fields.ParentWeight,
		Height:                fields.Height,
		ParentStateRoot:       fields.ParentStateRoot,
		ParentMessageReceipts: fields.ParentMessageReceipts,
		Messages:              fields.Messages,
		BLSAggregate:          fields.BLSAggregate,
		Timestamp:             fields.Timestamp,
		BlockSig:              fields.BlockSig,
		ParentBaseFee:         fields.ParentBaseFee,
	}
	return nil
}
