package types

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
)

// Block is a BlockHeader together with its decoded message lists. Headers
// alone are enough to extend the chain's weight; a Block's messages are
// needed only for state-transition validation.
type Block struct {
	Header      *BlockHeader
	BLSMessages []*Message
	SECPMessages []*SignedMessage
}

// Cid forwards to the header's CID; a block is identified by its header.
func (b *Block) Cid() cid.Cid {
	return b.Header.Cid()
}

// GossipBlock is the payload published on the blocks pubsub topic: a
// header plus the CIDs (not bodies) of its messages.
type GossipBlock struct {
	Header       *BlockHeader
	BLSMessages  []cid.Cid
	SECPMessages []cid.Cid
}

// FullTipset is a TipSet whose blocks carry their messages, e.g. as
// assembled from chain-exchange's MESSAGES option or bitswap fetches.
type FullTipset struct {
	blocks []*Block
	ts     *TipSet
}

// NewFullTipset validates that blocks' headers form a consistent tipset and
// wraps them accordingly.
func NewFullTipset(blocks []*Block) (*FullTipset, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("cannot create full tipset with no blocks")
	}
	headers := make([]*BlockHeader, len(blocks))
	for i, b := range blocks {
		headers[i] = b.Header
	}
	ts, err := NewTipSet(headers)
	if err != nil {
		return nil, err
	}

	// Re-sort blocks to match the canonical header order established by
	// NewTipSet (sorted and deduplicated by CID).
	byCid := make(map[string]*Block, len(blocks))
	for _, b := range blocks {
		byCid[string(b.Cid().Bytes())] = b
	}
	sortedBlocks := make([]*Block, 0, len(ts.Blocks()))
	for _, h := range ts.Blocks() {
		sortedBlocks = append(sortedBlocks, byCid[string(h.Cid().Bytes())])
	}

	return &FullTipset{blocks: sortedBlocks, ts: ts}, nil
}

// MustNewFullTipset panics on invalid input; used in tests and trusted
// internal construction.
func MustNewFullTipset(blocks []*Block) *FullTipset {
	fts, err := NewFullTipset(blocks)
	if err != nil {
		panic(err)
	}
	return fts
}

// Blocks returns the full tipset's blocks, sorted to match the underlying
// TipSet's header order.
func (f *FullTipset) Blocks() []*Block { return f.blocks }

// Key forwards to the underlying TipSet's key.
func (f *FullTipset) Key() TipSetKey { return f.ts.Key() }

// Epoch forwards to the underlying TipSet's epoch.
func (f *FullTipset) Epoch() abi.ChainEpoch { return f.ts.Epoch() }

// Parents forwards to the underlying TipSet's parents.
func (f *FullTipset) Parents() TipSetKey { return f.ts.Parents() }

// Weight forwards to the underlying TipSet's weight.
func (f *FullTipset) Weight() big.Int { return f.ts.Weight() }

// ParentStateRoot forwards to the underlying TipSet.
func (f *FullTipset) ParentStateRoot() cid.Cid { return f.ts.ParentStateRoot() }

// TipSet discards the message bodies and returns the plain TipSet.
func (f *FullTipset) TipSet() *TipSet { return f.ts }

// Cids returns the sorted block CIDs of the underlying tipset.
func (f *FullTipset) Cids() []cid.Cid { return f.ts.Cids() }
