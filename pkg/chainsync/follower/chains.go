package follower

import (
	"sort"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// extractChains greedily partitions the map's tipsets into oldest-first
// chains: repeatedly pick the heaviest unclaimed tipset, then walk
// backward via parents -> key lookups into the same map until no ancestor
// remains.
func (tm *tipsetMap) extractChains() [][]*types.FullTipset {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	claimed := map[types.TipSetKey]bool{}
	var chains [][]*types.FullTipset

	for {
		var heaviest *types.FullTipset
		for key, ts := range tm.m {
			if claimed[key] {
				continue
			}
			if heaviest == nil || ts.Weight().GreaterThan(heaviest.Weight()) {
				heaviest = ts
			}
		}
		if heaviest == nil {
			break
		}

		var chain []*types.FullTipset
		cur := heaviest
		for {
			chain = append(chain, cur)
			claimed[cur.Key()] = true

			parent, ok := tm.m[cur.Parents()]
			if !ok || claimed[parent.Key()] {
				break
			}
			cur = parent
		}

		// chain was collected newest-first by the backward walk; reverse
		// it to the oldest-first order callers expect.
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		chains = append(chains, chain)
	}

	sort.Slice(chains, func(i, j int) bool {
		return chains[i][len(chains[i])-1].Weight().GreaterThan(chains[j][len(chains[j])-1].Weight())
	})
	return chains
}
