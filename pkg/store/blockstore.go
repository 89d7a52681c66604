// Package store defines the content-addressed blockstore boundary chain
// sync depends on. The on-disk store itself is an external collaborator
// (see spec's out-of-scope list); this package supplies the trait, an
// in-memory implementation for tests, and adapters onto the ecosystem
// blockstore interfaces venus builds on.
package store

import (
	"context"
	"fmt"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	ipfsbs "github.com/ipfs/go-ipfs-blockstore"
)

// Blockstore is the three-method boundary chain sync needs from a
// content-addressed byte store: get, put_keyed and has, all safe under
// concurrent readers and writers. It is intentionally narrower than
// go-ipfs-blockstore's full Blockstore interface so callers can be stubbed
// without pulling in a real backing store.
type Blockstore interface {
	// Get returns the bytes stored under c, or ErrNotFound if absent.
	Get(ctx context.Context, c cid.Cid) ([]byte, error)

	// Put stores data under its own content-derived key (put_keyed: the
	// caller already knows data's CID and is asserting it, not asking the
	// store to compute one).
	Put(ctx context.Context, c cid.Cid, data []byte) error

	// Has reports whether c is present without fetching its bytes.
	Has(ctx context.Context, c cid.Cid) (bool, error)
}

// ErrNotFound is returned by Get when c is absent from the store.
var ErrNotFound = fmt.Errorf("blockstore: block not found")

// MemoryBlockstore is an in-memory Blockstore for tests and devnets; it
// never evicts and is safe for concurrent use.
type MemoryBlockstore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBlockstore returns an empty MemoryBlockstore.
func NewMemoryBlockstore() *MemoryBlockstore {
	return &MemoryBlockstore{data: map[string][]byte{}}
}

// Get implements Blockstore.
func (m *MemoryBlockstore) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[c.KeyString()]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// Put implements Blockstore.
func (m *MemoryBlockstore) Put(_ context.Context, c cid.Cid, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[c.KeyString()] = data
	return nil
}

// Has implements Blockstore.
func (m *MemoryBlockstore) Has(_ context.Context, c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[c.KeyString()]
	return ok, nil
}

var _ Blockstore = (*MemoryBlockstore)(nil)

// FromIPFSBlockstore adapts a github.com/ipfs/go-ipfs-blockstore.Blockstore
// (the interface venus's own blockstoreutil wraps around a datastore) down
// to this package's narrower Blockstore boundary.
type FromIPFSBlockstore struct {
	bs ipfsbs.Blockstore
}

// NewFromIPFSBlockstore wraps bs.
func NewFromIPFSBlockstore(bs ipfsbs.Blockstore) *FromIPFSBlockstore {
	return &FromIPFSBlockstore{bs: bs}
}

// Get implements Blockstore.
func (f *FromIPFSBlockstore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	blk, err := f.bs.Get(ctx, c)
	if err != nil {
		if err == ipfsbs.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return blk.RawData(), nil
}

// Put implements Blockstore.
func (f *FromIPFSBlockstore) Put(ctx context.Context, c cid.Cid, data []byte) error {
	blk, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return err
	}
	return f.bs.Put(ctx, blk)
}

// Has implements Blockstore.
func (f *FromIPFSBlockstore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return f.bs.Has(ctx, c)
}

var _ Blockstore = (*FromIPFSBlockstore)(nil)

// NewFromDatastore builds a FromIPFSBlockstore directly over an
// github.com/ipfs/go-datastore.Batching, the on-disk path (badger, level,
// flatfs, ...) this package's in-memory MemoryBlockstore stands in for
// during tests.
func NewFromDatastore(d ds.Batching) *FromIPFSBlockstore {
	return NewFromIPFSBlockstore(ipfsbs.NewBlockstore(d))
}
