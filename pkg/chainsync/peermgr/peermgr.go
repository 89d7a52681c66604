// Package peermgr tracks per-peer chain-exchange success/failure/latency
// stats, scores and sorts peers for request racing, and maintains a ban
// list with expiry alongside a protected set exempt from both.
package peermgr

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/raulk/clock"
)

var log = logging.Logger("peermgr")

const (
	// newPeerMul slightly discounts a never-seen peer's cost below the
	// global average, to incentivize trying peers we have no history for.
	newPeerMul = 0.9

	// shufflePeersPrefix bounds how many of the best-scored peers are
	// considered before shuffling for request routing.
	shufflePeersPrefix = 100

	// localInvAlpha and globalInvAlpha are the EMA dampening factors: a
	// bigger divisor means a slower-moving average.
	localInvAlpha  = 5
	globalInvAlpha = 20

	// defaultBanDuration is applied by BanPeerWithDefaultDuration.
	defaultBanDuration = time.Hour

	// unbanScanInterval is how often the ban list is scanned for expired
	// entries.
	unbanScanInterval = 60 * time.Second

	// peerOpsBuffer bounds the channel of outgoing Ban/Unban operations;
	// a full buffer only means the swarm is slow to drain it, so sends
	// are best-effort and logged, never blocking.
	peerOpsBuffer = 256
)

// stats is the mutable per-peer record: request counts and a running
// average latency.
type stats struct {
	successes   uint32
	failures    uint32
	averageTime time.Duration
}

// Operation is emitted on the peer-operations channel to drive the
// external swarm: Ban asks it to block-list a peer, Unban asks it to lift
// that block.
type Operation interface{ isOperation() }

// Ban asks the swarm to block-list Peer.
type Ban struct {
	Peer      peer.ID
	UserAgent string
	Reason    string
}

func (Ban) isOperation() {}

// Unban asks the swarm to lift Peer's block, because its ban expired.
type Unban struct {
	Peer peer.ID
}

func (Unban) isOperation() {}

// UserAgentFunc resolves a peer's identify-protocol user agent string, or
// "" if unknown. Banning consults it to whitelist known crawlers.
type UserAgentFunc func(peer.ID) string

// Manager is a thread-safe tracker of chain-exchange peer quality, ban
// state and protection, and the single source of Operation events the
// owning swarm must act on.
type Manager struct {
	clock clock.Clock

	peersMu   sync.RWMutex
	fullPeers map[peer.ID]*stats
	badPeers  map[peer.ID]struct{}

	avgMu         sync.RWMutex
	avgGlobalTime time.Duration

	banMu   sync.Mutex
	banList map[peer.ID]*time.Time // nil deadline means permanent

	protectedMu sync.RWMutex
	protected   map[peer.ID]struct{}

	ops chan Operation
}

// New constructs an empty Manager using the real wall clock.
func New() *Manager {
	return NewWithClock(clock.New())
}

// NewWithClock constructs an empty Manager using c, letting tests control
// ban expiry deterministically.
func NewWithClock(c clock.Clock) *Manager {
	return &Manager{
		clock:     c,
		fullPeers: map[peer.ID]*stats{},
		badPeers:  map[peer.ID]struct{}{},
		banList:   map[peer.ID]*time.Time{},
		protected: map[peer.ID]struct{}{},
		ops:       make(chan Operation, peerOpsBuffer),
	}
}

// Operations returns the channel of Ban/Unban events the owning swarm
// should drain and act on.
func (m *Manager) Operations() <-chan Operation { return m.ops }

func (m *Manager) emit(op Operation) {
	select {
	case m.ops <- op:
	default:
		log.Warnf("peer operation channel full, dropping %T", op)
	}
}

// IsPeerNew reports whether peer_id has neither stats nor a bad-peer
// marking yet.
func (m *Manager) IsPeerNew(p peer.ID) bool {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()
	if _, ok := m.badPeers[p]; ok {
		return false
	}
	_, ok := m.fullPeers[p]
	return !ok
}

// TouchPeer marks peer as active with zeroed stats even though no request
// has completed yet; used by tests to seed the peer set.
func (m *Manager) TouchPeer(p peer.ID) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	if _, ok := m.fullPeers[p]; !ok {
		m.fullPeers[p] = &stats{}
	}
}

// SortedPeers scores every tracked peer by cost = avg_time +
// fail_rate*global_avg (or global_avg*newPeerMul for peers with no
// history) and returns them ascending by cost (cheapest/best first).
func (m *Manager) SortedPeers() []peer.ID {
	m.peersMu.RLock()
	type scored struct {
		peer peer.ID
		cost float64
	}
	entries := make([]scored, 0, len(m.fullPeers))
	m.avgMu.RLock()
	avg := m.avgGlobalTime
	m.avgMu.RUnlock()
	for p, s := range m.fullPeers {
		var cost float64
		if s.successes+s.failures > 0 {
			failRate := float64(s.failures) / float64(s.successes)
			cost = s.averageTime.Seconds()
			if avg > 0 {
				// Skipped at zero global average: a peer with failures and
				// no successes has an infinite failRate, and Inf*0 is NaN.
				cost += failRate * avg.Seconds()
			}
		} else {
			cost = avg.Seconds() * newPeerMul
		}
		entries = append(entries, scored{p, cost})
	}
	m.peersMu.RUnlock()

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].cost < entries[j-1].cost; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	out := make([]peer.ID, len(entries))
	for i, e := range entries {
		out[i] = e.peer
	}
	return out
}

// TopPeersShuffled returns up to shufflePeersPrefix of SortedPeers' best
// entries, shuffled, so request racing doesn't hammer the same peer every
// time.
func (m *Manager) TopPeersShuffled() []peer.ID {
	sorted := m.SortedPeers()
	if len(sorted) > shufflePeersPrefix {
		sorted = sorted[:shufflePeersPrefix]
	}
	rand.Shuffle(len(sorted), func(i, j int) { sorted[i], sorted[j] = sorted[j], sorted[i] })
	return sorted
}

// emaStep applies the integer-dampened exponential moving average update
// this spec uses throughout: new = old +/- (|sample - old| / k).
func emaStep(old, sample time.Duration, k int64) time.Duration {
	if old == 0 {
		return sample
	}
	if sample < old {
		delta := (old - sample) / time.Duration(k)
		return old - delta
	}
	delta := (sample - old) / time.Duration(k)
	return old + delta
}

// LogGlobalSuccess folds dur into the cross-peer average response time.
func (m *Manager) LogGlobalSuccess(dur time.Duration) {
	m.avgMu.Lock()
	defer m.avgMu.Unlock()
	m.avgGlobalTime = emaStep(m.avgGlobalTime, dur, globalInvAlpha)
}

// LogSuccess records a successful request to peer taking dur, clearing any
// bad-peer marking.
func (m *Manager) LogSuccess(p peer.ID, dur time.Duration) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	delete(m.badPeers, p)
	s, ok := m.fullPeers[p]
	if !ok {
		s = &stats{}
		m.fullPeers[p] = s
	}
	s.successes++
	s.averageTime = emaStep(s.averageTime, dur, localInvAlpha)
}

// LogFailure records a failed request to peer taking dur. A no-op for
// peers already marked bad, matching the reference behavior of not
// double-penalizing a peer about to be dropped anyway.
func (m *Manager) LogFailure(p peer.ID, dur time.Duration) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	if _, bad := m.badPeers[p]; bad {
		return
	}
	s, ok := m.fullPeers[p]
	if !ok {
		s = &stats{}
		m.fullPeers[p] = s
	}
	s.failures++
	s.averageTime = emaStep(s.averageTime, dur, localInvAlpha)
}

// MarkPeerBad removes p from the tracked peer set and records it as bad,
// for protocol-level misbehavior (not a transient failure).
func (m *Manager) MarkPeerBad(p peer.ID, reason string) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	delete(m.fullPeers, p)
	log.Debugw("marked peer bad", "peer", p, "reason", reason)
	m.badPeers[p] = struct{}{}
}

// UnmarkPeerBad removes p's bad-peer marking.
func (m *Manager) UnmarkPeerBad(p peer.ID) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	delete(m.badPeers, p)
}

// RemovePeer drops p from the tracked peer set without marking it bad.
func (m *Manager) RemovePeer(p peer.ID) {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	delete(m.fullPeers, p)
}

// PeerCount returns the number of currently tracked (non-bad) peers.
func (m *Manager) PeerCount() int {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()
	return len(m.fullPeers)
}

// ProtectPeer exempts p from proactive disconnection and banning.
func (m *Manager) ProtectPeer(p peer.ID) {
	m.protectedMu.Lock()
	defer m.protectedMu.Unlock()
	m.protected[p] = struct{}{}
}

// UnprotectPeer removes p's protection.
func (m *Manager) UnprotectPeer(p peer.ID) {
	m.protectedMu.Lock()
	defer m.protectedMu.Unlock()
	delete(m.protected, p)
}

// ListProtectedPeers returns the current protected set.
func (m *Manager) ListProtectedPeers() map[peer.ID]struct{} {
	m.protectedMu.RLock()
	defer m.protectedMu.RUnlock()
	out := make(map[peer.ID]struct{}, len(m.protected))
	for p := range m.protected {
		out[p] = struct{}{}
	}
	return out
}

// IsPeerProtected reports whether p is exempt from banning.
func (m *Manager) IsPeerProtected(p peer.ID) bool {
	m.protectedMu.RLock()
	defer m.protectedMu.RUnlock()
	_, ok := m.protected[p]
	return ok
}

// isCrawler whitelists well-known crawler user agents from being banned,
// so indexing services don't get cut off from the network.
func isCrawler(userAgent string) bool {
	return strings.HasPrefix(userAgent, "nebula/") || strings.HasPrefix(userAgent, "hermes")
}

// BanPeer records p in the ban list with an expiry of now+duration (or
// permanently if duration is nil), then emits a Ban operation — unless p
// is protected or its resolved user agent is a whitelisted crawler.
func (m *Manager) BanPeer(p peer.ID, reason string, duration *time.Duration, getUserAgent UserAgentFunc) {
	if m.IsPeerProtected(p) {
		return
	}

	userAgent := ""
	if getUserAgent != nil {
		userAgent = getUserAgent(p)
	}
	if isCrawler(userAgent) {
		log.Debugw("whitelisted crawler peer", "peer", p, "user_agent", userAgent)
		return
	}

	m.banMu.Lock()
	var deadline *time.Time
	if duration != nil {
		d := m.clock.Now().Add(*duration)
		deadline = &d
	}
	m.banList[p] = deadline
	m.banMu.Unlock()

	m.emit(Ban{Peer: p, UserAgent: userAgent, Reason: reason})
}

// BanPeerWithDefaultDuration bans p for defaultBanDuration (1h).
func (m *Manager) BanPeerWithDefaultDuration(p peer.ID, reason string, getUserAgent UserAgentFunc) {
	d := defaultBanDuration
	m.BanPeer(p, reason, &d, getUserAgent)
}

// IsBanned reports whether p has a ban entry. An expired entry still
// counts until the next unban scan removes it.
func (m *Manager) IsBanned(p peer.ID) bool {
	m.banMu.Lock()
	defer m.banMu.Unlock()
	_, ok := m.banList[p]
	return ok
}

// RunUnbanLoop scans the ban list every unbanScanInterval and emits an
// Unban operation for every entry whose deadline has passed, until ctx is
// done.
func (m *Manager) RunUnbanLoop(ctx context.Context) error {
	ticker := m.clock.Ticker(unbanScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.scanExpiredBans()
		}
	}
}

func (m *Manager) scanExpiredBans() {
	now := m.clock.Now()
	var expired []peer.ID

	m.banMu.Lock()
	for p, deadline := range m.banList {
		if deadline != nil && now.After(*deadline) {
			expired = append(expired, p)
		}
	}
	for _, p := range expired {
		delete(m.banList, p)
	}
	m.banMu.Unlock()

	for _, p := range expired {
		m.emit(Unban{Peer: p})
	}
}
