// Package blockvalidator implements full per-block consensus validation:
// a cheap sequential prelude (cache hit, sanity, clock drift, parent and
// lookback resolution) followed by a parallel fan-out of the expensive
// checks (messages, miner liveness, base fee, parent weight, state
// transition, signatures, beacon chain, VRF elections, winning PoSt).
package blockvalidator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/filecoin-project/venus-chainsync/pkg/beacon"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	cryptoiface "github.com/filecoin-project/venus-chainsync/pkg/crypto"
	"github.com/filecoin-project/venus-chainsync/pkg/state"
	"github.com/filecoin-project/venus-chainsync/pkg/store"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var log = logging.Logger("blockvalidator")

// Config parameterizes consensus rules that vary by network and upgrade
// height.
type Config struct {
	BlockDelaySecs           uint64
	AllowableClockDrift      time.Duration
	SmokeHeight              abi.ChainEpoch
	TicketRandomnessLookback abi.ChainEpoch

	// IgnoreDrand disables beacon-chain validation entirely; pkg/config
	// fills it from the block_validate.ignore_drand TOML key. No
	// environment variable is read for it.
	IgnoreDrand bool
}

// Validator runs the full consensus validation pipeline against the
// external collaborators it's constructed with: a chain index, a state
// executor, a beacon schedule, and the signature/VRF/PoSt verifiers.
type Validator struct {
	cfg Config

	chainIndex   ChainIndex
	executor     state.Executor
	beacons      beacon.Schedule
	verifier     cryptoiface.Verifier
	postVerifier cryptoiface.WinningPoStVerifier
	bs           store.Blockstore

	validated *ValidationCache
	badBlocks *badblock.Cache

	networkVersion func(epoch abi.ChainEpoch) network.Version

	now func() time.Time
}

// New constructs a Validator. networkVersionAt resolves the network
// version in effect at a given epoch, driving both beacon-schedule and
// EVM-enabling-height decisions.
func New(
	cfg Config,
	chainIndex ChainIndex,
	executor state.Executor,
	beacons beacon.Schedule,
	verifier cryptoiface.Verifier,
	postVerifier cryptoiface.WinningPoStVerifier,
	bs store.Blockstore,
	badBlocks *badblock.Cache,
	networkVersionAt func(epoch abi.ChainEpoch) network.Version,
) *Validator {
	return &Validator{
		cfg:            cfg,
		chainIndex:     chainIndex,
		executor:       executor,
		beacons:        beacons,
		verifier:       verifier,
		postVerifier:   postVerifier,
		bs:             bs,
		validated:      NewValidationCache(0),
		badBlocks:      badBlocks,
		networkVersion: networkVersionAt,
		now:            time.Now,
	}
}

// Validate runs the block validation pipeline. On success the block's CID
// is recorded as validated and the block is returned unchanged; on
// failure the returned error's Kind tells the caller whether to cache the
// block CID as bad (see Kind.CacheableAsBad).
func (v *Validator) Validate(ctx context.Context, block *types.Block) (*types.Block, error) {
	header := block.Header
	blockCid := header.Cid()

	if v.validated.IsValidated(blockCid) {
		return block, nil
	}

	if reason, bad := v.badBlocks.Get(blockCid); bad {
		err := newErr(KindStructural, "block is cached bad: %s", reason)
		observeRejection(err)
		return nil, err
	}

	if err := v.sanityCheck(header); err != nil {
		v.markBad(blockCid, err)
		observeRejection(err)
		return nil, err
	}

	now := v.now()
	if header.Timestamp > uint64(now.Add(v.cfg.AllowableClockDrift).Unix()) {
		err := newErr(KindTimeTravel, "block timestamp %d is ahead of local clock %d beyond allowable drift", header.Timestamp, now.Unix())
		observeRejection(err)
		return nil, err
	}

	base, err := v.chainIndex.GetTipSet(ctx, header.Parents)
	if err != nil {
		wrapped := newErr(KindParentNotFound, "resolving base tipset %s: %v", header.Parents, err)
		observeRejection(wrapped)
		return nil, wrapped
	}

	nulls := uint64(header.Height - (base.Epoch() + 1))
	targetTimestamp := base.MinTimestamp() + v.cfg.BlockDelaySecs*(nulls+1)
	if targetTimestamp != header.Timestamp {
		err := newErr(KindConsensus, "unequal block timestamps: block %d, expected %d", header.Timestamp, targetTimestamp)
		v.markBad(blockCid, err)
		observeRejection(err)
		return nil, err
	}

	lookbackTipset, lookbackStateRoot, err := v.chainIndex.GetLookbackTipSet(ctx, base, header.Height)
	if err != nil {
		wrapped := newErr(KindExecutor, "resolving lookback tipset: %v", err)
		observeRejection(wrapped)
		return nil, wrapped
	}

	prevBeacon, err := v.chainIndex.LatestBeaconEntry(ctx, base)
	if err != nil {
		wrapped := newErr(KindExecutor, "resolving latest beacon entry: %v", err)
		observeRejection(wrapped)
		return nil, wrapped
	}

	workAddr, err := v.executor.GetMinerWorkAddr(ctx, lookbackStateRoot, header.Miner)
	if err != nil {
		wrapped := newErr(KindExecutor, "resolving miner work address: %v", err)
		observeRejection(wrapped)
		return nil, wrapped
	}

	nv := v.networkVersion(base.Epoch())

	merr := &multierror.Error{}
	var merrMu sync.Mutex
	record := func(err error) {
		if err == nil {
			return
		}
		merrMu.Lock()
		defer merrMu.Unlock()
		merr = multierror.Append(merr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record(validateBlockMessages(gctx, v.executor, v.verifier, v.bs, nv, base, header, block.BLSMessages, block.SECPMessages))
		return nil
	})

	g.Go(func() error {
		record(v.validateMinerLiveness(gctx, header.Miner, base))
		return nil
	})

	g.Go(func() error {
		record(v.validateBaseFee(gctx, base, header))
		return nil
	})

	g.Go(func() error {
		record(v.validateParentWeight(base, header))
		return nil
	})

	g.Go(func() error {
		record(v.validateStateAndReceiptRoot(gctx, base, header))
		return nil
	})

	g.Go(func() error {
		record(v.validateBlockSignature(header, workAddr))
		return nil
	})

	if !v.cfg.IgnoreDrand {
		g.Go(func() error {
			record(v.validateBeaconChain(nv, header, base.Epoch(), prevBeacon))
			return nil
		})
	}

	g.Go(func() error {
		record(v.validateTicketElection(header, base, prevBeacon, workAddr))
		return nil
	})

	g.Go(func() error {
		record(v.validateWinnerElection(ctx, header, base, lookbackTipset, lookbackStateRoot, prevBeacon, workAddr))
		return nil
	})

	g.Go(func() error {
		record(v.verifyWinningPoSt(ctx, nv, header, prevBeacon, lookbackStateRoot))
		return nil
	})

	_ = g.Wait()

	if merr.Len() > 0 {
		combined := combinedError(merr)
		v.markBad(blockCid, combined)
		observeRejection(combined)
		return nil, combined
	}

	v.validated.MarkValidated(blockCid)
	blocksValidatedTotal.Inc()
	log.Debugw("block passed full validation", "epoch", header.Height, "cid", blockCid)
	return block, nil
}

// markBad records blockCid in the bad-block cache when err's Kind says the
// failure is permanent (structural, consensus, or crypto) rather than
// transient or local (time-travel, missing parent, executor failure).
func (v *Validator) markBad(blockCid cid.Cid, err error) {
	ve, ok := err.(*Error)
	if !ok || !ve.Kind.CacheableAsBad() {
		return
	}
	v.badBlocks.Put(blockCid, ve.Error())
}

// combinedError reduces a multierror into a single Error whose Kind is the
// most severe kind among its members and whose message joins every
// member's message with a comma, matching spec's comma-joined error
// propagation rule.
func combinedError(merr *multierror.Error) error {
	kind := KindUnknown
	msgs := make([]string, 0, merr.Len())
	for _, e := range merr.Errors {
		msgs = append(msgs, e.Error())
		if ve, ok := e.(*Error); ok && ve.Kind > kind {
			kind = ve.Kind
		}
	}
	return &Error{Kind: kind, Message: fmt.Sprintf("%v", joinComma(msgs))}
}

func joinComma(msgs []string) string {
	out := ""
	for i, m := range msgs {
		if i > 0 {
			out += ", "
		}
		out += m
	}
	return out
}

func (v *Validator) sanityCheck(header *types.BlockHeader) error {
	if header.ElectionProof == nil {
		return newErr(KindStructural, "block has no election proof")
	}
	if header.Ticket == nil {
		return newErr(KindStructural, "block has no ticket")
	}
	if header.BlockSig == nil {
		return newErr(KindStructural, "block has no signature")
	}
	return nil
}

func beaconBase(header *types.BlockHeader, prevBeacon types.BeaconEntry) types.BeaconEntry {
	if len(header.BeaconEntries) > 0 {
		return header.BeaconEntries[len(header.BeaconEntries)-1]
	}
	return prevBeacon
}
