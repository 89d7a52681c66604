package follower

import (
	"context"
	"sync"
	"time"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/net"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/peermgr"
	"github.com/filecoin-project/venus-chainsync/pkg/health"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// muxerState names the outer Idle/Connect/Bootstrap/Follow state machine
// that drives the inner Follower.
type muxerState int

const (
	muxerIdle muxerState = iota
	muxerConnect
	muxerBootstrap
	muxerFollow
)

func (s muxerState) String() string {
	switch s {
	case muxerIdle:
		return "idle"
	case muxerConnect:
		return "connect"
	case muxerBootstrap:
		return "bootstrap"
	case muxerFollow:
		return "follow"
	default:
		return "unknown"
	}
}

// bootstrapRetryDelay separates consecutive Bootstrap attempts after a
// failure returns the muxer to Idle. The spec leaves the backoff strategy
// between attempts an open question and explicitly permits zero delay;
// this module uses zero, kept as a named constant so a backoff policy has
// one place to change.
const bootstrapRetryDelay = 0

// Muxer drives the inner Follower through Idle -> Connect -> Bootstrap ->
// Follow, reporting progress through a health.Reporter so an external
// liveness/readiness surface can observe sync status.
type Muxer struct {
	follower *Follower
	netCtx   *net.Context
	peers    *peermgr.Manager
	reporter *health.Reporter
	genesis  cid.Cid

	networkTipsets <-chan *types.FullTipset
	directTipsets  <-chan *types.FullTipset

	networkHeadMu    sync.RWMutex
	networkHeadEpoch abi.ChainEpoch
}

// NewMuxer constructs a Muxer. networkTipsets carries full tipsets
// assembled from gossipsub/bitswap; directTipsets carries tipsets handed
// in directly by a co-located miner or RPC caller.
func NewMuxer(
	follower *Follower,
	netCtx *net.Context,
	peers *peermgr.Manager,
	reporter *health.Reporter,
	genesis cid.Cid,
	networkTipsets <-chan *types.FullTipset,
	directTipsets <-chan *types.FullTipset,
) *Muxer {
	return &Muxer{
		follower:       follower,
		netCtx:         netCtx,
		peers:          peers,
		reporter:       reporter,
		genesis:        genesis,
		networkTipsets: networkTipsets,
		directTipsets:  directTipsets,
	}
}

// Run is the outer state machine's main loop. It owns the Follower's event
// loop as a child goroutine and exits only when ctx is cancelled.
func (m *Muxer) Run(ctx context.Context) {
	go m.follower.Run(ctx)

	state := muxerIdle
	for {
		select {
		case <-ctx.Done():
			m.follower.Wait()
			return
		default:
		}

		switch state {
		case muxerIdle:
			state = m.runIdle(ctx)
		case muxerConnect:
			state = m.runConnect(ctx)
		case muxerBootstrap:
			m.follower.SetPolicy(Strict)
			state = m.runBootstrap(ctx)
		case muxerFollow:
			m.follower.SetPolicy(Forgiving)
			state = m.runFollow(ctx)
		}
	}
}

// report publishes a SyncStatusReport. A status of StatusSyncing/StatusSynced
// is overridden to StatusError whenever the follower has an outstanding
// internal fault, so a stuck range-sync or executor failure surfaces on the
// health endpoint even if the caller believed progress was otherwise normal.
func (m *Muxer) report(status health.Status) {
	fault := m.follower.Fault()
	if fault != nil {
		status = health.StatusError
	}
	m.reporter.Set(health.SyncStatusReport{
		Status:           status,
		CurrentHeadEpoch: m.follower.Heaviest().Epoch(),
		NetworkHeadEpoch: m.networkHead(),
		Err:              fault,
	})
}

// observeNetworkHead records the highest epoch seen from either tipset
// source, so report can populate SyncStatusReport.NetworkHeadEpoch.
func (m *Muxer) observeNetworkHead(fts *types.FullTipset) {
	epoch := fts.Epoch()
	m.networkHeadMu.Lock()
	if epoch > m.networkHeadEpoch {
		m.networkHeadEpoch = epoch
	}
	m.networkHeadMu.Unlock()
}

func (m *Muxer) networkHead() abi.ChainEpoch {
	m.networkHeadMu.RLock()
	defer m.networkHeadMu.RUnlock()
	return m.networkHeadEpoch
}

// runIdle waits until the peer manager has at least one usable peer before
// moving to Connect.
func (m *Muxer) runIdle(ctx context.Context) muxerState {
	m.follower.ClearFault()
	m.report(health.StatusSyncing)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.peers.PeerCount() > 0 {
			return muxerConnect
		}
		select {
		case <-ctx.Done():
			return muxerIdle
		case <-ticker.C:
		}
	}
}

// runConnect exchanges hellos with the current top peers (confirming
// liveness and genesis agreement is left to the swarm layer that
// negotiated these connections) and waits for the first network-announced
// tipset before moving to Bootstrap.
func (m *Muxer) runConnect(ctx context.Context) muxerState {
	req := net.HelloRequest{GenesisCid: m.genesis}
	for _, p := range m.peers.TopPeersShuffled() {
		start := time.Now()
		if _, err := m.netCtx.HelloRequest(p, req); err != nil {
			m.peers.LogFailure(p, time.Since(start))
			continue
		}
		m.peers.LogSuccess(p, time.Since(start))
	}

	select {
	case <-ctx.Done():
		return muxerIdle
	case fts, ok := <-m.networkTipsets:
		if !ok {
			m.report(health.StatusError)
			return muxerIdle
		}
		m.observeNetworkHead(fts)
		m.follower.HandleIncoming(ctx, fts)
		return muxerBootstrap
	case fts, ok := <-m.directTipsets:
		if !ok {
			m.report(health.StatusError)
			return muxerIdle
		}
		m.observeNetworkHead(fts)
		m.follower.HandleIncoming(ctx, fts)
		return muxerBootstrap
	}
}

// runBootstrap range-syncs under the Strict invalid-block policy until the
// follower's working map has drained (FindRange/SyncRange both idle),
// meaning every known candidate chain either validated or was rejected.
func (m *Muxer) runBootstrap(ctx context.Context) muxerState {
	m.report(health.StatusSyncing)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return muxerIdle
		case fts, ok := <-m.networkTipsets:
			if !ok {
				m.report(health.StatusError)
				return muxerIdle
			}
			m.observeNetworkHead(fts)
			m.follower.HandleIncoming(ctx, fts)
		case fts, ok := <-m.directTipsets:
			if !ok {
				m.report(health.StatusError)
				return muxerIdle
			}
			m.observeNetworkHead(fts)
			m.follower.HandleIncoming(ctx, fts)
		case <-ticker.C:
			if m.follower.Fault() != nil {
				m.report(health.StatusError)
				return muxerIdle
			}
			if m.follower.State() == stateIdle {
				return muxerFollow
			}
			if m.peers.PeerCount() == 0 {
				time.Sleep(bootstrapRetryDelay)
				return muxerIdle
			}
		}
	}
}

// runFollow is steady-state single-tipset catch-up under the Forgiving
// invalid-block policy: every incoming tipset is handled as it arrives.
func (m *Muxer) runFollow(ctx context.Context) muxerState {
	m.report(health.StatusSynced)

	for {
		select {
		case <-ctx.Done():
			return muxerIdle
		case fts, ok := <-m.networkTipsets:
			if !ok {
				m.report(health.StatusError)
				return muxerIdle
			}
			m.observeNetworkHead(fts)
			m.follower.HandleIncoming(ctx, fts)
			m.report(health.StatusSynced)
		case fts, ok := <-m.directTipsets:
			if !ok {
				m.report(health.StatusError)
				return muxerIdle
			}
			m.observeNetworkHead(fts)
			m.follower.HandleIncoming(ctx, fts)
			m.report(health.StatusSynced)
		}
	}
}
