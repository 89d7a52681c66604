package net

import (
	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// Option bits select which parts of a tipset bundle a chain-exchange
// request wants back.
type Option uint64

const (
	OptionHeaders  Option = 1 << 0
	OptionMessages Option = 1 << 1
)

// ChainExchangeRequest is the request payload of the libp2p
// request-response protocol "/fil/chain/xchg/0.0.1".
type ChainExchangeRequest struct {
	Start      []cid.Cid
	RequestLen uint64
	Options    Option
}

// MessageInclusion records, for one tipset bundle, which block indices
// included each BLS/SECP message — mirrors chain-exchange's bls_incl /
// secp_incl fields, which dedupe shared messages across a tipset's blocks.
type MessageInclusion struct {
	BLSIncludes  [][]uint64
	SECPIncludes [][]uint64
}

// TipsetBundle is one tipset's worth of a chain-exchange response:
// headers always, messages only when OptionMessages was requested.
type TipsetBundle struct {
	Blocks    []*types.BlockHeader
	BLSMsgs   []*types.Message
	SECPMsgs  []*types.SignedMessage
	Inclusion MessageInclusion
}

// ChainExchangeResponse is the full response to a ChainExchangeRequest: a
// sequence of tipset bundles, descending from Start by epoch.
type ChainExchangeResponse struct {
	Chain []TipsetBundle
}

// HelloRequest is the payload of the libp2p protocol "/fil/hello/1.0.0",
// sent once per new peer connection to exchange chain heads.
type HelloRequest struct {
	HeaviestTipSet       []cid.Cid
	HeaviestTipSetHeight int64
	HeaviestTipSetWeight []byte // big.Int bytes, to keep this package value-comparable
	GenesisCid           cid.Cid
}

// HelloResponse is hello's reply, timestamped so the round-trip latency
// can be attributed to the network rather than remote processing.
type HelloResponse struct {
	ArrivalNanos uint64
	SentNanos    uint64
}

// Requester is the narrow libp2p transport boundary this package depends
// on: sending one request to one already-connected peer and waiting for
// its response, or a classified TransportError. The swarm itself (dialing,
// protocol negotiation, stream multiplexing) is an external collaborator.
type Requester interface {
	SendChainExchangeRequest(p peer.ID, req ChainExchangeRequest, timeoutMillis uint64) (*ChainExchangeResponse, error)
	SendHelloRequest(p peer.ID, req HelloRequest, timeoutMillis uint64) (*HelloResponse, error)
	SendBitswapRequest(c cid.Cid, timeoutMillis uint64) ([]byte, error)
}
