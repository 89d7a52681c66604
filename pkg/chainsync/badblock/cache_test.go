package badblock

import (
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func testCid(t *testing.T, seed byte) cid.Cid {
	t.Helper()
	hash, err := mh.Sum([]byte{seed}, mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, hash)
}

func TestCachePutGetContains(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)

	cid1 := testCid(t, 1)
	require.False(t, c.Contains(cid1))

	c.Put(cid1, "equivocation")
	require.True(t, c.Contains(cid1))

	reason, ok := c.Get(cid1)
	require.True(t, ok)
	require.Equal(t, "equivocation", reason)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)

	cid1, cid2, cid3 := testCid(t, 1), testCid(t, 2), testCid(t, 3)
	c.Put(cid1, "r1")
	c.Put(cid2, "r2")
	c.Put(cid3, "r3")

	require.False(t, c.Contains(cid1))
	require.True(t, c.Contains(cid2))
	require.True(t, c.Contains(cid3))
}

func TestMarkChainContaining(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)

	root := testCid(t, 1)
	d1, d2 := testCid(t, 2), testCid(t, 3)
	c.MarkChainContaining(root, []cid.Cid{d1, d2})

	reason, ok := c.Get(d1)
	require.True(t, ok)
	require.Contains(t, reason, root.String())

	reason, ok = c.Get(d2)
	require.True(t, ok)
	require.Contains(t, reason, "chain contained")
}
