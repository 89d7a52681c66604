package follower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func TestExtractChainsWalksBackToGenesis(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a := newTestFullTipset(t, 10, genesisKey, "a")
	b := newTestFullTipset(t, 11, a.Key(), "b")
	c := newTestFullTipset(t, 12, b.Key(), "c")

	tm.merge(c)
	tm.merge(a)
	tm.merge(b)

	chains := tm.extractChains()
	require.Len(t, chains, 1)
	require.Len(t, chains[0], 3)
	require.True(t, chains[0][0].Key().Equals(a.Key()))
	require.True(t, chains[0][1].Key().Equals(b.Key()))
	require.True(t, chains[0][2].Key().Equals(c.Key()))
}

func TestExtractChainsHeaviestChainFirst(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	light := newTestFullTipset(t, 5, genesisKey, "light")
	heavy := newTestFullTipset(t, 50, genesisKey, "heavy")

	tm.merge(light)
	tm.merge(heavy)

	chains := tm.extractChains()
	require.Len(t, chains, 2)
	require.True(t, chains[0][0].Key().Equals(heavy.Key()))
	require.True(t, chains[1][0].Key().Equals(light.Key()))
}

func TestExtractChainsDisjointChainsSeparated(t *testing.T) {
	tm := newTipsetMap()

	genesisKey := types.NewTipSetKey()
	a1 := newTestFullTipset(t, 10, genesisKey, "a1")
	a2 := newTestFullTipset(t, 11, a1.Key(), "a2")

	otherGenesis := types.NewTipSetKey(dummyFollowerCid(t, "other-genesis"))
	b1 := newTestFullTipset(t, 10, otherGenesis, "b1")

	tm.merge(a1)
	tm.merge(a2)
	tm.merge(b1)

	chains := tm.extractChains()
	require.Len(t, chains, 2)
}
