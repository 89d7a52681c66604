// Package badblock implements the bounded cache of block CIDs judged
// permanently invalid. A CID's presence is itself sufficient cause to
// reject any tipset containing it; it is never re-validated against
// remote peers.
package badblock

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("badblock")

// DefaultCacheSize matches the bound venus-family nodes use for similarly
// shaped "recently seen, permanently bad" caches.
const DefaultCacheSize = 1 << 15

// Cache is a bounded CID -> reason_string LRU. It never persists to disk:
// a restarted node re-derives bad blocks from first principles.
type Cache struct {
	lru *lru.Cache[cid.Cid, string]
}

// NewCache constructs a Cache holding at most size entries, evicting least
// recently used on overflow.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[cid.Cid, string](size)
	if err != nil {
		return nil, fmt.Errorf("badblock: constructing lru cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Put records c as bad for reason, evicting the least recently used entry
// if the cache is full.
func (c *Cache) Put(blockCid cid.Cid, reason string) {
	c.lru.Add(blockCid, reason)
}

// Get returns the recorded reason for blockCid, if any.
func (c *Cache) Get(blockCid cid.Cid) (string, bool) {
	return c.lru.Get(blockCid)
}

// Contains reports whether blockCid is recorded bad, without affecting its
// recency in the LRU.
func (c *Cache) Contains(blockCid cid.Cid) bool {
	return c.lru.Contains(blockCid)
}

// MarkChainContaining records every cid in descendants as bad with reason
// "chain contained <cid>", for a reverse walk that discovered root is bad
// partway through assembling a candidate chain.
func (c *Cache) MarkChainContaining(root cid.Cid, descendants []cid.Cid) {
	reason := fmt.Sprintf("chain contained %s", root)
	for _, d := range descendants {
		log.Infow("marking descendant bad", "cid", d, "reason", reason)
		c.Put(d, reason)
	}
}
