package tipsetvalidator

import (
	"bytes"
	"context"
	"fmt"

	amt "github.com/filecoin-project/go-amt-ipld/v4"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/venus-chainsync/pkg/store"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// messagesAMT is the {bls: [Cid], secp: [Cid]} shape a block header's
// Messages field points to; compute_msg_root builds one AMT per list and
// wraps their roots in this struct, matching the on-chain layout.
type messagesAMT struct {
	BLSMessages  cid.Cid
	SECPMessages cid.Cid
}

// ipldStoreAdapter makes a store.Blockstore usable as go-amt-ipld's
// required cbor.IpldStore, encoding/decoding with the same canonical CBOR
// codec the rest of this module's data model uses.
type ipldStoreAdapter struct {
	bs store.Blockstore
}

func (a *ipldStoreAdapter) Get(ctx context.Context, c cid.Cid, out interface{}) error {
	data, err := a.bs.Get(ctx, c)
	if err != nil {
		return err
	}
	if u, ok := out.(cbg.CBORUnmarshaler); ok {
		return u.UnmarshalCBOR(bytes.NewReader(data))
	}
	return types.UnmarshalCBOR(data, out)
}

func (a *ipldStoreAdapter) Put(ctx context.Context, v interface{}) (cid.Cid, error) {
	var data []byte
	var err error
	if m, ok := v.(cbg.CBORMarshaler); ok {
		var buf bytes.Buffer
		if err := m.MarshalCBOR(&buf); err != nil {
			return cid.Undef, err
		}
		data = buf.Bytes()
	} else {
		data, err = types.MarshalCBOR(v)
		if err != nil {
			return cid.Undef, err
		}
	}
	c, err := types.CidOfBytes(data)
	if err != nil {
		return cid.Undef, err
	}
	if err := a.bs.Put(ctx, c, data); err != nil {
		return cid.Undef, err
	}
	return c, nil
}

// ComputeMsgRoot builds the AMT of message CIDs referenced by a block and
// returns its root CID — the value a header's Messages field must equal.
func ComputeMsgRoot(ctx context.Context, bs store.Blockstore, blsMsgs []*types.Message, secpMsgs []*types.SignedMessage) (cid.Cid, error) {
	adapter := &ipldStoreAdapter{bs: bs}

	blsRoot, err := buildCidAMT(ctx, adapter, cidsOfMessages(blsMsgs))
	if err != nil {
		return cid.Undef, fmt.Errorf("building bls message amt: %w", err)
	}
	secpRoot, err := buildCidAMT(ctx, adapter, cidsOfSignedMessages(secpMsgs))
	if err != nil {
		return cid.Undef, fmt.Errorf("building secp message amt: %w", err)
	}

	root := messagesAMT{BLSMessages: blsRoot, SECPMessages: secpRoot}
	return adapter.Put(ctx, root)
}

func buildCidAMT(ctx context.Context, ipldStore cbor.IpldStore, cids []cid.Cid) (cid.Cid, error) {
	r, err := amt.NewAMT(ipldStore)
	if err != nil {
		return cid.Undef, err
	}
	for i, c := range cids {
		cc := cbg.CborCid(c)
		if err := r.Set(ctx, uint64(i), &cc); err != nil {
			return cid.Undef, err
		}
	}
	return r.Flush(ctx)
}

func cidsOfMessages(msgs []*types.Message) []cid.Cid {
	out := make([]cid.Cid, len(msgs))
	for i, m := range msgs {
		out[i] = m.Cid()
	}
	return out
}

func cidsOfSignedMessages(msgs []*types.SignedMessage) []cid.Cid {
	out := make([]cid.Cid, 0, len(msgs))
	for _, m := range msgs {
		c, err := m.Cid()
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
