package types

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"
)

// TipSetKey is the canonical identifier of a tipset: the sorted, deduplicated
// set of its block CIDs. Two tipsets with the same block set have equal keys
// regardless of the order blocks were collected in.
//
// The key stores only the concatenated, sorted CID bytes so that the value
// is comparable and usable as a map key directly — a []cid.Cid field would
// make the struct incomparable.
type TipSetKey struct {
	value string
}

// NewTipSetKey sorts and deduplicates cids to build a canonical key.
func NewTipSetKey(cids ...cid.Cid) TipSetKey {
	sorted := make([]cid.Cid, len(cids))
	copy(sorted, cids)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})

	var b strings.Builder
	var last cid.Cid
	for i, c := range sorted {
		if i > 0 && c.Equals(last) {
			continue
		}
		b.Write(c.Bytes())
		last = c
	}
	return TipSetKey{value: b.String()}
}

// Cids decodes and returns the sorted block CIDs backing the key.
func (k TipSetKey) Cids() []cid.Cid {
	if k.value == "" {
		return nil
	}
	var out []cid.Cid
	rest := k.value
	for len(rest) > 0 {
		n, c, err := cid.CidFromBytes([]byte(rest))
		if err != nil {
			// A TipSetKey is only ever built through NewTipSetKey or
			// UnmarshalCBOR, both of which validate their input, so a
			// corrupt value here is a programmer error, not protocol input.
			panic(fmt.Sprintf("corrupt tipset key: %v", err))
		}
		out = append(out, c)
		rest = rest[n:]
	}
	return out
}

// Len returns the number of blocks in the key.
func (k TipSetKey) Len() int {
	return len(k.Cids())
}

// IsEmpty reports whether the key has no blocks; a valid TipSetKey is never
// empty once constructed from a real tipset.
func (k TipSetKey) IsEmpty() bool {
	return k.value == ""
}

// Equals compares two keys by their sorted CID sets.
func (k TipSetKey) Equals(other TipSetKey) bool {
	return k.value == other.value
}

// Contains reports whether c is one of the key's block CIDs.
func (k TipSetKey) Contains(c cid.Cid) bool {
	for _, existing := range k.Cids() {
		if existing.Equals(c) {
			return true
		}
	}
	return false
}

// String renders the key as a bracketed list of CID strings, used in logs
// and error messages.
func (k TipSetKey) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range k.Cids() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.String())
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalCBOR encodes the key as a CBOR array of CIDs.
func (k TipSetKey) MarshalCBOR() ([]byte, error) {
	return marshalCBOR(k.Cids())
}

// UnmarshalCBOR decodes a CBOR array of CIDs into the key, re-sorting to
// preserve the canonical invariant.
func (k *TipSetKey) UnmarshalCBOR(data []byte) error {
	var cids []cid.Cid
	if err := unmarshalCBOR(data, &cids); err != nil {
		return fmt.Errorf("unmarshaling tipset key: %w", err)
	}
	*k = NewTipSetKey(cids...)
	return nil
}
