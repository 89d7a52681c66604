// Package net implements the sync network context: typed chain-exchange
// RPCs over an underlying request-response transport, with peer racing,
// adaptive timeouts and failure classification feeding back into the peer
// manager.
package net

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/peermgr"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var log = logging.Logger("chainsync/net")

const (
	// maxConcurrentChainExchangeRequests bounds how many peers a
	// no-specific-peer request fans out to at once.
	maxConcurrentChainExchangeRequests = 2

	helloTimeout   = 30 * time.Second
	bitswapTimeout = 30 * time.Second

	minChainExchangeTimeout = 5 * time.Second
	maxChainExchangeTimeout = 60 * time.Second
	chainExchangeStep       = 2 * time.Second
)

// Context is the chain-exchange-over-libp2p boundary the follower and
// range syncer call through: it hides peer selection, request racing and
// timeout adaptation behind a handful of typed operations.
type Context struct {
	requester Requester
	peers     *peermgr.Manager
	timeout   *adaptiveTimeout
}

// NewContext wires a Context over requester, scoring and banning peers
// through peers.
func NewContext(requester Requester, peers *peermgr.Manager) *Context {
	return &Context{
		requester: requester,
		peers:     peers,
		timeout:   newAdaptiveTimeout(minChainExchangeTimeout, chainExchangeStep, maxChainExchangeTimeout),
	}
}

// PeerManager returns the peer manager backing this context's peer
// selection and scoring.
func (c *Context) PeerManager() *peermgr.Manager { return c.peers }

// ChainExchangeHeaders fetches count tipsets' headers only, starting from
// tsk, descending by epoch.
func (c *Context) ChainExchangeHeaders(ctx context.Context, p *peer.ID, tsk types.TipSetKey, count uint64) ([]*types.TipSet, error) {
	bundles, err := c.handleChainExchangeRequest(ctx, p, tsk, count, OptionHeaders, func(tipsets []*types.TipSet) bool {
		return validateNetworkTipsets(tipsets, tsk)
	}, bundlesToTipsets)
	if err != nil {
		return nil, err
	}
	return bundles, nil
}

// ChainExchangeMessages fetches the messages for an already-known tipset
// ts, assembling a FullTipset from ts's headers plus the fetched bodies.
func (c *Context) ChainExchangeMessages(ctx context.Context, p *peer.ID, ts *types.TipSet) (*types.FullTipset, error) {
	bundles, err := c.handleChainExchangeRequestRaw(ctx, p, ts.Key(), 1, OptionMessages, func([]TipsetBundle) bool { return true })
	if err != nil {
		return nil, err
	}
	if len(bundles) != 1 {
		return nil, fmt.Errorf("chain exchange request returned %d tipsets, 1 expected", len(bundles))
	}
	bundle := bundles[0]
	bundle.Blocks = ts.Blocks()
	return bundleToFullTipset(bundle)
}

// ChainExchangeFullTipset fetches one full tipset (headers and messages)
// identified by tsk.
func (c *Context) ChainExchangeFullTipset(ctx context.Context, p *peer.ID, tsk types.TipSetKey) (*types.FullTipset, error) {
	bundles, err := c.handleChainExchangeRequestRaw(ctx, p, tsk, 1, OptionHeaders|OptionMessages, func([]TipsetBundle) bool { return true })
	if err != nil {
		return nil, err
	}
	if len(bundles) != 1 {
		return nil, fmt.Errorf("full tipset request returned %d tipsets, 1 expected", len(bundles))
	}
	return bundleToFullTipset(bundles[0])
}

// ChainExchangeFullTipsets fetches up to 16 full tipsets starting from tsk.
func (c *Context) ChainExchangeFullTipsets(ctx context.Context, p *peer.ID, tsk types.TipSetKey) ([]*types.FullTipset, error) {
	const maxFullTipsets = 16
	bundles, err := c.handleChainExchangeRequestRaw(ctx, p, tsk, maxFullTipsets, OptionHeaders|OptionMessages, func([]TipsetBundle) bool { return true })
	if err != nil {
		return nil, err
	}
	out := make([]*types.FullTipset, 0, len(bundles))
	for _, b := range bundles {
		fts, err := bundleToFullTipset(b)
		if err != nil {
			return nil, err
		}
		out = append(out, fts)
	}
	return out, nil
}

func bundlesToTipsets(bundles []TipsetBundle) []*types.TipSet {
	out := make([]*types.TipSet, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, types.MustNewTipSet(b.Blocks))
	}
	return out
}

// bundleToFullTipset assembles a FullTipset from a bundle's headers and
// its undifferentiated BLS/SECP message lists. Resolving MessageInclusion
// into a per-block split is the wire decoder's job, not this boundary's;
// single-block bundles (the common case for a just-gossiped tipset) get
// the full lists attached directly.
func bundleToFullTipset(b TipsetBundle) (*types.FullTipset, error) {
	ts := types.MustNewTipSet(b.Blocks)
	blocks := make([]*types.Block, 0, len(ts.Blocks()))
	for _, h := range ts.Blocks() {
		blk := &types.Block{Header: h}
		if len(ts.Blocks()) == 1 {
			blk.BLSMessages = b.BLSMsgs
			blk.SECPMessages = b.SECPMsgs
		}
		blocks = append(blocks, blk)
	}
	return types.NewFullTipset(blocks)
}

// handleChainExchangeRequest is handleChainExchangeRequestRaw plus
// decoding each TipsetBundle's headers into a *types.TipSet, the shape
// ChainExchangeHeaders needs to validate and return.
func (c *Context) handleChainExchangeRequest(
	ctx context.Context,
	p *peer.ID,
	tsk types.TipSetKey,
	requestLen uint64,
	options Option,
	validate func([]*types.TipSet) bool,
	decode func([]TipsetBundle) []*types.TipSet,
) ([]*types.TipSet, error) {
	bundles, err := c.handleChainExchangeRequestRaw(ctx, p, tsk, requestLen, options, func(bundles []TipsetBundle) bool {
		return validate(decode(bundles))
	})
	if err != nil {
		return nil, err
	}
	return decode(bundles), nil
}

// handleChainExchangeRequestRaw is the shared core of every public
// operation: build the request, either send it to a specific peer or race
// it across a shuffled top-peer sample, and fold the outcome back into the
// peer manager's global success average.
func (c *Context) handleChainExchangeRequestRaw(
	ctx context.Context,
	p *peer.ID,
	tsk types.TipSetKey,
	requestLen uint64,
	options Option,
	validate func([]TipsetBundle) bool,
) ([]TipsetBundle, error) {
	request := ChainExchangeRequest{
		Start:      tsk.Cids(),
		RequestLen: requestLen,
		Options:    options,
	}

	globalStart := time.Now()

	var result []TipsetBundle
	var err error
	if p != nil {
		result, err = c.sendChainExchangeRequest(ctx, *p, request)
		if err == nil && !validate(result) {
			err = fmt.Errorf("chain exchange response from %s failed validation", *p)
		}
	} else {
		result, err = c.raceChainExchangeRequest(ctx, request, validate)
	}
	if err != nil {
		return nil, err
	}

	c.peers.LogGlobalSuccess(time.Since(globalStart))
	return result, nil
}

func (c *Context) raceChainExchangeRequest(ctx context.Context, request ChainExchangeRequest, validate func([]TipsetBundle) bool) ([]TipsetBundle, error) {
	peers := c.peers.TopPeersShuffled()
	if len(peers) == 0 {
		return nil, fmt.Errorf("chain exchange failed: no peers are available")
	}

	batch := NewRaceBatch[[]TipsetBundle](maxConcurrentChainExchangeRequests)
	var networkFailures, lookupFailures int
	means := &runningMean{}
	for _, p := range peers {
		p := p
		batch.Add(ctx, func(ctx context.Context) ([]TipsetBundle, error) {
			start := time.Now()
			resp, err := c.sendChainExchangeRequest(ctx, p, request)
			if err != nil {
				networkFailures++
				log.Debugw("failed chain_exchange request to peer", "peer", p, "err", err)
				return nil, err
			}
			if !validate(resp) {
				lookupFailures++
				return nil, fmt.Errorf("response from %s failed validation", p)
			}
			means.Update(time.Since(start))
			return resp, nil
		})
	}

	result, ok := batch.GetOkValidated(ctx, func([]TipsetBundle) bool { return true })
	if !ok {
		c.timeout.AdaptOnFailure()
		log.Debugw("increased chain exchange timeout", "timeout", c.timeout.Get())
		return nil, fmt.Errorf(
			"chain exchange request failed for all top peers: %d network failures, %d lookup failures",
			networkFailures, lookupFailures,
		)
	}

	if mean, ok := means.Mean(); ok && c.timeout.AdaptOnSuccess(mean) {
		log.Debugw("decreased chain exchange timeout", "timeout", c.timeout.Get(), "mean", mean)
	}
	return result, nil
}

// sendChainExchangeRequest sends request to exactly one peer, classifies
// the outcome against the peer manager, and returns its response.
func (c *Context) sendChainExchangeRequest(ctx context.Context, p peer.ID, request ChainExchangeRequest) ([]TipsetBundle, error) {
	start := time.Now()
	timeoutMillis := uint64(c.timeout.Get().Milliseconds())

	resp, err := c.requester.SendChainExchangeRequest(p, request, timeoutMillis)
	dur := time.Since(start)
	if err != nil {
		c.classifyFailure(ctx, p, err, dur)
		return nil, fmt.Errorf("chain exchange request to %s: %w", p, err)
	}
	c.peers.LogSuccess(p, dur)
	return resp.Chain, nil
}

func (c *Context) classifyFailure(ctx context.Context, p peer.ID, err error, dur time.Duration) {
	var te *TransportError
	if !asTransportError(err, &te) {
		c.peers.LogFailure(p, dur)
		return
	}
	switch te.Kind {
	case ErrUnsupportedProtocols:
		c.peers.BanPeerWithDefaultDuration(p, "ChainExchange protocol unsupported", nil)
	case ErrConnectionClosed, ErrDialFailure:
		c.peers.MarkPeerBad(p, fmt.Sprintf("chain exchange error: %s", te.Kind))
	case ErrTimeout, ErrIO:
		c.peers.LogFailure(p, dur)
	}
}

func asTransportError(err error, target **TransportError) bool {
	te, ok := err.(*TransportError)
	if ok {
		*target = te
	}
	return ok
}

// HelloRequest sends a hello to p and waits up to 30s for its response,
// without retrying on timeout.
func (c *Context) HelloRequest(p peer.ID, req HelloRequest) (*HelloResponse, error) {
	resp, err := c.requester.SendHelloRequest(p, req, uint64(helloTimeout.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("hello request to %s: %w", p, err)
	}
	return resp, nil
}

// validateNetworkTipsets checks that tipsets (sorted descending by epoch)
// starts with startKey and that each tipset's parents equal the key of the
// tipset after it (its older neighbour).
func validateNetworkTipsets(tipsets []*types.TipSet, startKey types.TipSetKey) bool {
	if len(tipsets) == 0 {
		log.Warn("invalid empty chain_exchange_headers response")
		return false
	}
	if !tipsets[0].Key().Equals(startKey) {
		log.Warnw("start tipset key mismatch", "expected", startKey, "actual", tipsets[0].Key())
		return false
	}
	for i := 0; i < len(tipsets)-1; i++ {
		ts, parent := tipsets[i], tipsets[i+1]
		if !ts.Parents().Equals(parent.Key()) {
			log.Warnw("invalid chain", "epoch", ts.Epoch(), "expected_parent", parent.Key(), "actual_parent", ts.Parents())
			return false
		}
	}
	return true
}
