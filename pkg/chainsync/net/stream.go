package net

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-msgio"
)

const (
	chainExchangeProtocol = protocol.ID("/fil/chain/xchg/0.0.1")
	helloProtocol         = protocol.ID("/fil/hello/1.0.0")

	// maxChainExchangeFrame bounds a single length-delimited frame read
	// from a chain-exchange stream; a hostile or buggy peer that claims a
	// larger frame gets disconnected instead of exhausting memory.
	maxChainExchangeFrame = 64 << 20
)

var cborEncMode, _ = cbor.CanonicalEncOptions().EncMode()

// StreamRequester implements Requester by dialing a fresh libp2p stream per
// request and exchanging one length-delimited CBOR frame each way, framed
// with github.com/libp2p/go-msgio — the concrete counterpart to net.Context's
// Requester boundary, which the follower and range syncer only ever see
// through that interface.
type StreamRequester struct {
	host host.Host
}

// NewStreamRequester wires a StreamRequester over an already-running libp2p
// host; dialing, protocol negotiation and stream multiplexing themselves
// remain h's responsibility.
func NewStreamRequester(h host.Host) *StreamRequester {
	return &StreamRequester{host: h}
}

func (r *StreamRequester) SendChainExchangeRequest(p peer.ID, req ChainExchangeRequest, timeoutMillis uint64) (*ChainExchangeResponse, error) {
	var resp ChainExchangeResponse
	if err := r.roundTrip(p, chainExchangeProtocol, timeoutMillis, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *StreamRequester) SendHelloRequest(p peer.ID, req HelloRequest, timeoutMillis uint64) (*HelloResponse, error) {
	sentAt := time.Now().UnixNano()
	var resp HelloResponse
	if err := r.roundTrip(p, helloProtocol, timeoutMillis, req, &resp); err != nil {
		return nil, err
	}
	resp.ArrivalNanos = uint64(time.Now().UnixNano())
	resp.SentNanos = uint64(sentAt)
	return &resp, nil
}

// SendBitswapRequest is not served over the chain-exchange stream protocol;
// bitswap is an external collaborator per this package's own scoping (see
// Context.BitswapRequest in bitswap.go), so StreamRequester never dials it
// directly.
func (r *StreamRequester) SendBitswapRequest(c cid.Cid, timeoutMillis uint64) ([]byte, error) {
	return nil, fmt.Errorf("bitswap request for %s: not served by the chain-exchange stream transport", c)
}

func (r *StreamRequester) roundTrip(p peer.ID, proto protocol.ID, timeoutMillis uint64, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMillis)*time.Millisecond)
	defer cancel()

	s, err := r.host.NewStream(ctx, p, proto)
	if err != nil {
		return NewTransportError(ErrDialFailure, fmt.Errorf("opening %s stream to %s: %w", proto, p, err))
	}
	defer s.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	if err := writeFrame(s, req); err != nil {
		return NewTransportError(ErrIO, fmt.Errorf("writing %s request to %s: %w", proto, p, err))
	}

	if err := readFrame(s, resp); err != nil {
		return NewTransportError(ErrIO, fmt.Errorf("reading %s response from %s: %w", proto, p, err))
	}
	return nil
}

func writeFrame(s network.Stream, v interface{}) error {
	body, err := cborEncMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	w := msgio.NewVarintWriter(s)
	return w.WriteMsg(body)
}

func readFrame(s network.Stream, v interface{}) error {
	r := msgio.NewVarintReaderSize(s, maxChainExchangeFrame)
	body, err := r.ReadMsg()
	if err != nil {
		return fmt.Errorf("reading frame: %w", err)
	}
	defer r.ReleaseMsg(body)
	if err := cbor.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}
	return nil
}
