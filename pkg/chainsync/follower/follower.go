package follower

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/blockvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/net"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/tipsetvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/store"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// innerState names the Follower's own Idle/FindRange/SyncRange state
// machine, distinct from the outer Muxer's Idle/Connect/Bootstrap/Follow.
type innerState int

const (
	stateIdle innerState = iota
	stateFindRange
	stateSyncRange
)

// followerEvent is the internal event-channel payload the follower's task
// group reports back through: a batch of newly seen tipsets, a tipset that
// passed full validation, or a block condemned during validation.
type followerEvent interface{ isFollowerEvent() }

type newFullTipsetsEvent struct{ tipsets []*types.FullTipset }
type validatedTipsetEvent struct{ tipset *types.FullTipset }
type badBlockEvent struct {
	cid    cid.Cid
	reason string
}

func (newFullTipsetsEvent) isFollowerEvent() {}
func (validatedTipsetEvent) isFollowerEvent() {}
func (badBlockEvent) isFollowerEvent()        {}

// Follower is the inner Idle/FindRange/SyncRange state machine: it owns the
// working tipset map, dispatches FetchTipset/ValidateTipset tasks, and
// tracks the local heaviest tipset.
type Follower struct {
	bs              store.Blockstore
	netCtx          *net.Context
	rangeSyncer     *RangeSyncer
	tsValidator     *tipsetvalidator.Validator
	strictBlocks    *blockvalidator.Validator
	forgivingBlocks *blockvalidator.Validator
	badBlocks       *badblock.Cache
	chainIndex      *ChainIndex

	tsMap *tipsetMap

	heaviestMu sync.RWMutex
	heaviest   *types.TipSet

	policyMu sync.RWMutex
	policy   InvalidBlockPolicy

	events chan followerEvent

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	faultMu sync.Mutex
	fault   error

	wg sync.WaitGroup
}

// NewFollower constructs a Follower. strictBlocks and forgivingBlocks must
// share every collaborator except their bad-block cache: forgivingBlocks
// should be built against a cache that nothing else reads, so single-
// tipset catch-up failures never poison the shared cache (spec: "Forgiving
// ... no bad-block caching on failure").
func NewFollower(
	bs store.Blockstore,
	netCtx *net.Context,
	rangeSyncer *RangeSyncer,
	tsValidator *tipsetvalidator.Validator,
	strictBlocks *blockvalidator.Validator,
	forgivingBlocks *blockvalidator.Validator,
	badBlocks *badblock.Cache,
	chainIndex *ChainIndex,
	genesis *types.TipSet,
) *Follower {
	return &Follower{
		bs:              bs,
		netCtx:          netCtx,
		rangeSyncer:     rangeSyncer,
		tsValidator:     tsValidator,
		strictBlocks:    strictBlocks,
		forgivingBlocks: forgivingBlocks,
		badBlocks:       badBlocks,
		chainIndex:      chainIndex,
		tsMap:           newTipsetMap(),
		heaviest:        genesis,
		policy:          Forgiving,
		events:          make(chan followerEvent, 16),
		inFlight:        map[string]struct{}{},
	}
}

// SetPolicy switches between Strict (range-sync) and Forgiving (single-
// tipset catch-up) bad-block handling. The Muxer calls this as it moves
// between Bootstrap and Follow.
func (f *Follower) SetPolicy(p InvalidBlockPolicy) {
	f.policyMu.Lock()
	f.policy = p
	f.policyMu.Unlock()
}

func (f *Follower) currentPolicy() InvalidBlockPolicy {
	f.policyMu.RLock()
	defer f.policyMu.RUnlock()
	return f.policy
}

// State reports the inner Idle/FindRange/SyncRange state, derived from
// what's currently in flight rather than tracked explicitly: Idle once the
// working map has drained, FindRange while any fetch task is outstanding,
// SyncRange otherwise (a chain is ready and being validated).
func (f *Follower) State() innerState {
	f.inFlightMu.Lock()
	defer f.inFlightMu.Unlock()

	if len(f.inFlight) == 0 && f.tsMap.len() == 0 {
		return stateIdle
	}
	for identity := range f.inFlight {
		if len(identity) >= 6 && identity[:6] == "fetch:" {
			return stateFindRange
		}
	}
	return stateSyncRange
}

// Heaviest returns the follower's current locally-accepted heaviest tipset.
func (f *Follower) Heaviest() *types.TipSet {
	f.heaviestMu.RLock()
	defer f.heaviestMu.RUnlock()
	return f.heaviest
}

func (f *Follower) setHeaviest(ts *types.TipSet) {
	f.heaviestMu.Lock()
	f.heaviest = ts
	f.heaviestMu.Unlock()
}

// setFault records an internal failure (a non-recoverable range-sync error
// or an executor fault surfaced during validation) for the Muxer to observe
// through Fault. It is sticky until ClearFault runs.
func (f *Follower) setFault(err error) {
	f.faultMu.Lock()
	f.fault = err
	f.faultMu.Unlock()
}

// Fault returns the most recently recorded internal failure, or nil if none
// is outstanding.
func (f *Follower) Fault() error {
	f.faultMu.Lock()
	defer f.faultMu.Unlock()
	return f.fault
}

// ClearFault discards any recorded fault. The Muxer calls this on a fresh
// entry to Idle, so a stale fault doesn't outlive the retry it preceded.
func (f *Follower) ClearFault() {
	f.faultMu.Lock()
	f.fault = nil
	f.faultMu.Unlock()
}

// HandleIncoming is the entry point for both network-assembled and
// directly-submitted full tipsets: cheap-validate, then merge into the
// working map and re-run task dispatch.
func (f *Follower) HandleIncoming(ctx context.Context, fts *types.FullTipset) {
	if err := f.tsValidator.Validate(fts); err != nil {
		log.Infow("dropping tipset failing cheap validation", "key", fts.Key(), "err", err)
		return
	}
	f.tsMap.merge(fts)
	f.dispatch(ctx)
}

// Run drains the internal task-completion event channel until ctx is
// cancelled, applying spec.md's three state transitions.
func (f *Follower) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.events:
			f.handleEvent(ctx, ev)
		}
	}
}

func (f *Follower) handleEvent(ctx context.Context, ev followerEvent) {
	switch e := ev.(type) {
	case newFullTipsetsEvent:
		for _, ts := range e.tipsets {
			f.tsMap.merge(ts)
		}
		f.dispatch(ctx)

	case validatedTipsetEvent:
		present, err := f.bs.Has(ctx, e.tipset.ParentStateRoot())
		if err != nil || !present {
			log.Errorw("validated tipset's parent state missing from store", "key", e.tipset.Key(), "err", err)
			return
		}
		f.tsMap.delete(e.tipset.Key())
		f.setHeaviest(e.tipset.TipSet())
		f.chainIndex.Put(e.tipset.TipSet())
		f.dispatch(ctx)

	case badBlockEvent:
		f.badBlocks.Put(e.cid, e.reason)
		f.tsMap.dropContaining(e.cid)
		f.dispatch(ctx)
	}
}

// dispatch extracts candidate chains from the working map and emits at
// most one FetchTipset or ValidateTipset task per chain, deduplicated
// against in-flight tasks.
func (f *Follower) dispatch(ctx context.Context) {
	for _, chain := range f.tsMap.extractChains() {
		first := chain[0]

		present, err := f.bs.Has(ctx, first.ParentStateRoot())
		if err != nil {
			log.Warnw("checking parent state presence", "key", first.Key(), "err", err)
			continue
		}

		if !present {
			if first.Epoch() <= f.Heaviest().Epoch() {
				// Not heavier than the local chain: do not chase this fork.
				continue
			}
			f.spawnFetch(ctx, first)
			continue
		}

		f.spawnValidate(ctx, first)
	}
}

func (f *Follower) claim(identity string) bool {
	f.inFlightMu.Lock()
	defer f.inFlightMu.Unlock()
	if _, busy := f.inFlight[identity]; busy {
		return false
	}
	f.inFlight[identity] = struct{}{}
	return true
}

func (f *Follower) release(identity string) {
	f.inFlightMu.Lock()
	delete(f.inFlight, identity)
	f.inFlightMu.Unlock()
}

// spawnFetch turns a proposed chain head into a validated range of full
// tipsets reaching back to the local chain: ReverseWalk does the reverse
// header walk (and, if the walk disagrees with the local chain's parentage,
// fork resolution bounded at maxForkResolutionLength) and returns headers
// only, so each header tipset still needs its message bodies fetched before
// it can be queued for validation.
func (f *Follower) spawnFetch(ctx context.Context, first *types.FullTipset) {
	identity := "fetch:" + first.Parents().String()
	if !f.claim(identity) {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.release(identity)

		headers, err := f.rangeSyncer.ReverseWalk(ctx, first.TipSet(), f.Heaviest())
		if err != nil {
			log.Infow("range-syncing to proposed head", "key", first.Parents(), "err", err)
			f.setFault(err)
			return
		}

		fetched := make([]*types.FullTipset, 0, len(headers))
		for _, ts := range headers {
			if ts.Key().Equals(first.Key()) {
				fetched = append(fetched, first)
				continue
			}
			full, err := f.netCtx.ChainExchangeMessages(ctx, nil, ts)
			if err != nil {
				log.Infow("fetching tipset messages", "key", ts.Key(), "err", err)
				return
			}
			fetched = append(fetched, full)
		}

		select {
		case f.events <- newFullTipsetsEvent{tipsets: fetched}:
		case <-ctx.Done():
		}
	}()
}

func (f *Follower) spawnValidate(ctx context.Context, first *types.FullTipset) {
	identity := "validate:" + first.Key().String()
	if !f.claim(identity) {
		return
	}

	policy := f.currentPolicy()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.release(identity)

		validator := f.strictBlocks
		if policy == Forgiving {
			validator = f.forgivingBlocks
		}

		type failedBlock struct {
			cid cid.Cid
			err error
		}

		var mu sync.Mutex
		var failed []failedBlock
		var wg sync.WaitGroup

		for _, blk := range first.Blocks() {
			blk := blk
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := validator.Validate(ctx, blk); err != nil {
					log.Infow("block failed validation", "cid", blk.Cid(), "err", err)
					mu.Lock()
					failed = append(failed, failedBlock{cid: blk.Cid(), err: err})
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if len(failed) > 0 {
			for _, fb := range failed {
				if verr, ok := fb.err.(*blockvalidator.Error); ok && verr.Kind == blockvalidator.KindExecutor {
					f.setFault(fb.err)
				}
			}
			if policy == Strict {
				for _, fb := range failed {
					verr, ok := fb.err.(*blockvalidator.Error)
					if !ok || !verr.Kind.CacheableAsBad() {
						// Transient/local failures (time travel, missing
						// parent, executor faults) are not a property of
						// the block: don't poison the bad-block cache.
						continue
					}
					select {
					case f.events <- badBlockEvent{cid: fb.cid, reason: verr.Error()}:
					case <-ctx.Done():
						return
					}
				}
			}
			return
		}

		select {
		case f.events <- validatedTipsetEvent{tipset: first}:
		case <-ctx.Done():
		}
	}()
}

// Wait blocks until every spawned fetch/validate task has returned.
func (f *Follower) Wait() {
	f.wg.Wait()
}
