package net

import (
	"github.com/ipfs/go-cid"
)

// BitswapRequest fetches a single block's bytes out-of-band (bitswap)
// rather than through chain-exchange, for opportunistic retrieval of a
// block whose peer isn't known. It does not update peer stats: bitswap
// requests aren't attributed to a single peer.
func (c *Context) BitswapRequest(blockCid cid.Cid) ([]byte, error) {
	return c.requester.SendBitswapRequest(blockCid, uint64(bitswapTimeout.Milliseconds()))
}
