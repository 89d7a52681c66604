package blockvalidator

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
)

// defaultValidationCacheSize bounds the set of block CIDs remembered as
// already-validated, mirroring the bad-block cache's sizing.
const defaultValidationCacheSize = 1 << 15

// ValidationCache records block CIDs that have already passed full
// validation, letting a re-seen block short-circuit the whole pipeline.
type ValidationCache struct {
	lru *lru.Cache[cid.Cid, struct{}]
}

// NewValidationCache constructs a ValidationCache bounded to size entries.
func NewValidationCache(size int) *ValidationCache {
	if size <= 0 {
		size = defaultValidationCacheSize
	}
	l, err := lru.New[cid.Cid, struct{}](size)
	if err != nil {
		panic(err)
	}
	return &ValidationCache{lru: l}
}

// IsValidated reports whether c has already passed validation.
func (c *ValidationCache) IsValidated(blockCid cid.Cid) bool {
	_, ok := c.lru.Get(blockCid)
	return ok
}

// MarkValidated records c as having passed validation.
func (c *ValidationCache) MarkValidated(blockCid cid.Cid) {
	c.lru.Add(blockCid, struct{}{})
}
