package types

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
)

// TipSet is a non-empty set of block headers that all share the same
// epoch and parents. Constructing one validates that invariant.
type TipSet struct {
	key     TipSetKey
	blocks  []*BlockHeader
	height  abi.ChainEpoch
	parents TipSetKey
}

// NewTipSet validates blocks and, if they agree on epoch and parents,
// returns the TipSet they form.
func NewTipSet(blocks []*BlockHeader) (*TipSet, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("cannot create tipset with no blocks")
	}

	sorted := make([]*BlockHeader, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Cid().Bytes(), sorted[j].Cid().Bytes()) < 0
	})

	first := sorted[0]
	cids := make([]cid.Cid, 0, len(sorted))
	seen := map[string]struct{}{}
	deduped := sorted[:0]
	for _, b := range sorted {
		k := string(b.Cid().Bytes())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		deduped = append(deduped, b)
	}
	sorted = deduped

	for _, b := range sorted {
		if b.Height != first.Height {
			return nil, fmt.Errorf("inconsistent epoch in tipset blocks: %d != %d", b.Height, first.Height)
		}
		if !b.Parents.Equals(first.Parents) {
			return nil, fmt.Errorf("inconsistent parents in tipset blocks: %s != %s", b.Parents, first.Parents)
		}
		cids = append(cids, b.Cid())
	}

	return &TipSet{
		key:     NewTipSetKey(cids...),
		blocks:  sorted,
		height:  first.Height,
		parents: first.Parents,
	}, nil
}

// MustNewTipSet is NewTipSet for callers that have already validated their
// input (tests, internal constructions from a store that only ever holds
// valid tipsets).
func MustNewTipSet(blocks []*BlockHeader) *TipSet {
	ts, err := NewTipSet(blocks)
	if err != nil {
		panic(err)
	}
	return ts
}

// Key returns the tipset's canonical identifier.
func (ts *TipSet) Key() TipSetKey { return ts.key }

// Blocks returns the tipset's block headers, sorted by CID.
func (ts *TipSet) Blocks() []*BlockHeader { return ts.blocks }

// Cids returns the sorted block CIDs making up the tipset's key.
func (ts *TipSet) Cids() []cid.Cid { return ts.key.Cids() }

// Height (epoch) shared by every block in the tipset.
func (ts *TipSet) Height() abi.ChainEpoch { return ts.height }

// Epoch is an alias for Height.
func (ts *TipSet) Epoch() abi.ChainEpoch { return ts.height }

// Parents is the shared TipSetKey of every block's parent set.
func (ts *TipSet) Parents() TipSetKey { return ts.parents }

// Weight is the maximum parent weight across the tipset's blocks.
func (ts *TipSet) Weight() big.Int {
	w := ts.blocks[0].ParentWeight
	for _, b := range ts.blocks[1:] {
		if b.ParentWeight.GreaterThan(w) {
			w = b.ParentWeight
		}
	}
	return w
}

// MinTimestamp is the earliest timestamp across the tipset's blocks.
func (ts *TipSet) MinTimestamp() uint64 {
	min := ts.blocks[0].Timestamp
	for _, b := range ts.blocks[1:] {
		if b.Timestamp < min {
			min = b.Timestamp
		}
	}
	return min
}

// ParentStateRoot is shared by every block in a tipset — they all ran the
// same parent state transition — so any block's copy may be used.
func (ts *TipSet) ParentStateRoot() cid.Cid {
	return ts.blocks[0].ParentStateRoot
}

// ParentMessageReceipts mirrors ParentStateRoot's shared-across-blocks
// property.
func (ts *TipSet) ParentMessageReceipts() cid.Cid {
	return ts.blocks[0].ParentMessageReceipts
}

// MinTicket returns the block with the lexicographically smallest ticket
// VRF proof, used by post-smoke-height ticket-election randomness.
func (ts *TipSet) MinTicket() *Ticket {
	var min *Ticket
	for _, b := range ts.blocks {
		if b.Ticket == nil {
			continue
		}
		if min == nil || string(b.Ticket.VRFProof) < string(min.VRFProof) {
			min = b.Ticket
		}
	}
	return min
}

// String renders the tipset's key for logs.
func (ts *TipSet) String() string {
	return ts.key.String()
}

// Equals compares two tipsets by key.
func (ts *TipSet) Equals(other *TipSet) bool {
	if ts == nil || other == nil {
		return ts == other
	}
	return ts.key.Equals(other.key)
}
