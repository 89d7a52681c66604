package peermgr

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
)

func testPeerID(t *testing.T, seed string) peer.ID {
	t.Helper()
	return peer.ID(seed)
}

func TestIsCrawler(t *testing.T) {
	require.True(t, isCrawler("nebula/"))
	require.True(t, isCrawler("nebula/1.0"))
	require.True(t, isCrawler("hermes"))
	require.True(t, isCrawler("hermes/1.0"))
	require.False(t, isCrawler("forest"))
	require.False(t, isCrawler("lotus"))
	require.False(t, isCrawler("venus"))
}

func TestLogSuccessClearsBadPeer(t *testing.T) {
	m := New()
	p := testPeerID(t, "p1")
	m.MarkPeerBad(p, "bad behavior")
	require.False(t, m.IsPeerNew(p))

	m.LogSuccess(p, 100*time.Millisecond)
	m.peersMu.RLock()
	_, bad := m.badPeers[p]
	m.peersMu.RUnlock()
	require.False(t, bad)
}

func TestLogFailureNoOpOnBadPeer(t *testing.T) {
	m := New()
	p := testPeerID(t, "p1")
	m.MarkPeerBad(p, "bad behavior")
	m.LogFailure(p, 50*time.Millisecond)

	m.peersMu.RLock()
	_, tracked := m.fullPeers[p]
	m.peersMu.RUnlock()
	require.False(t, tracked)
}

func TestSortedPeersPrefersLowerCost(t *testing.T) {
	m := New()
	good, bad := testPeerID(t, "good"), testPeerID(t, "bad")

	for i := 0; i < 5; i++ {
		m.LogSuccess(good, 10*time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		m.LogFailure(bad, 500*time.Millisecond)
	}

	sorted := m.SortedPeers()
	require.Len(t, sorted, 2)
	require.Equal(t, good, sorted[0])
}

func TestBanPeerProtectedIsNoop(t *testing.T) {
	m := New()
	p := testPeerID(t, "protected")
	m.ProtectPeer(p)
	m.BanPeer(p, "test", nil, nil)
	require.False(t, m.IsBanned(p))
}

func TestBanPeerCrawlerIsNoop(t *testing.T) {
	m := New()
	p := testPeerID(t, "crawler")
	m.BanPeer(p, "test", nil, func(peer.ID) string { return "nebula/1.0" })
	require.False(t, m.IsBanned(p))
}

func TestBanPeerEmitsOperation(t *testing.T) {
	m := New()
	p := testPeerID(t, "misbehaving")
	m.BanPeer(p, "protocol violation", nil, nil)
	require.True(t, m.IsBanned(p))

	select {
	case op := <-m.Operations():
		ban, ok := op.(Ban)
		require.True(t, ok)
		require.Equal(t, p, ban.Peer)
	default:
		t.Fatal("expected a Ban operation")
	}
}

func TestUnbanLoopExpiresEntries(t *testing.T) {
	mc := clock.NewMock()
	m := NewWithClock(mc)
	p := testPeerID(t, "temp-banned")
	dur := time.Minute
	m.BanPeer(p, "transient", &dur, nil)
	<-m.Operations() // drain the Ban event

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.RunUnbanLoop(ctx) }()

	mc.Add(unbanScanInterval)
	mc.Add(2 * time.Minute)
	mc.Add(unbanScanInterval)

	require.Eventually(t, func() bool {
		return !m.IsBanned(p)
	}, time.Second, 10*time.Millisecond)
}
