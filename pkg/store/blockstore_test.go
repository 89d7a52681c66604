package store

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func testCid(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, hash)
}

func TestMemoryBlockstoreRoundTrip(t *testing.T) {
	bs := NewMemoryBlockstore()
	ctx := context.Background()
	data := []byte("a block")
	c := testCid(t, data)

	has, err := bs.Has(ctx, c)
	require.NoError(t, err)
	require.False(t, has)

	_, err = bs.Get(ctx, c)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, bs.Put(ctx, c, data))

	has, err = bs.Has(ctx, c)
	require.NoError(t, err)
	require.True(t, has)

	got, err := bs.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestMemoryBlockstoreConcurrentAccess(t *testing.T) {
	bs := NewMemoryBlockstore()
	ctx := context.Background()
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			data := []byte{byte(i)}
			c := testCid(t, data)
			_ = bs.Put(ctx, c, data)
			_, _ = bs.Has(ctx, c)
			_, _ = bs.Get(ctx, c)
		}(i)
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
