// Command chainsyncd wires every chain-sync component together into a
// runnable daemon: load configuration, stand up a libp2p host, and drive
// the Muxer's Idle/Connect/Bootstrap/Follow loop until interrupted. It
// exists to exercise the production wiring end to end; operational
// concerns it does not cover (persistent genesis loading, RPC, mempool)
// are out of this module's scope, see SPEC_FULL.md.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/filecoin-project/venus-chainsync/pkg/beacon"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/blockvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/follower"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/net"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/peermgr"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/tipsetvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/config"
	"github.com/filecoin-project/venus-chainsync/pkg/crypto"
	"github.com/filecoin-project/venus-chainsync/pkg/health"
	"github.com/filecoin-project/venus-chainsync/pkg/state"
	"github.com/filecoin-project/venus-chainsync/pkg/store"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var log = logging.Logger("chainsyncd")

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional; defaults apply otherwise)")
	gossipTopic := flag.String("gossip-topic", "/fil/blocks/devnet", "libp2p-pubsub topic new blocks are announced on")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalw("loading config", "err", err)
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h, err := libp2p.New()
	if err != nil {
		log.Fatalw("constructing libp2p host", "err", err)
	}
	defer h.Close()

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		log.Fatalw("constructing pubsub", "err", err)
	}

	badBlocks, err := badblock.NewCache(cfg.BadBlockCacheSize())
	if err != nil {
		log.Fatalw("constructing bad-block cache", "err", err)
	}
	// The Forgiving validator is built against its own cache so single-
	// tipset catch-up failures in Follow never poison the Strict/Bootstrap
	// cache other peers' range-sync results are checked against.
	forgivingBadBlocks, err := badblock.NewCache(cfg.BadBlockCacheSize())
	if err != nil {
		log.Fatalw("constructing forgiving bad-block cache", "err", err)
	}

	peers := peermgr.New()
	requester := net.NewStreamRequester(h)
	netCtx := net.NewContext(requester, peers)

	bs := store.NewFromDatastore(dssync.MutexWrap(ds.NewMapDatastore()))

	genesis := mustDevnetGenesis()
	chainIndex := follower.NewChainIndex(genesis)

	networkVersionAt := func(abi.ChainEpoch) network.Version { return network.Version18 }
	beaconSchedule := beacon.Schedule{{Start: network.Version0, Beacon: beacon.NewMockBeacon()}}

	strictBlocks := blockvalidator.New(
		cfg.BlockValidatorConfig(), chainIndex, state.NewFakeExecutor(), beaconSchedule,
		crypto.NewFakeVerifier(), crypto.InsecureWinningPoStVerifier{}, bs, badBlocks, networkVersionAt,
	)
	forgivingBlocks := blockvalidator.New(
		cfg.BlockValidatorConfig(), chainIndex, state.NewFakeExecutor(), beaconSchedule,
		crypto.NewFakeVerifier(), crypto.InsecureWinningPoStVerifier{}, bs, forgivingBadBlocks, networkVersionAt,
	)
	tsValidator := tipsetvalidator.NewValidator(cfg.TipsetValidatorConfig(), badBlocks)
	rangeSyncer := follower.NewRangeSyncer(netCtx, badBlocks, chainIndex)

	fol := follower.NewFollower(bs, netCtx, rangeSyncer, tsValidator, strictBlocks, forgivingBlocks, badBlocks, chainIndex, genesis)

	gossipSource, err := net.NewGossipTipsetSource(ps, *gossipTopic)
	if err != nil {
		log.Fatalw("subscribing to gossip topic", "err", err)
	}
	go gossipSource.Run(ctx)

	directTipsets := make(chan *types.FullTipset)
	defer close(directTipsets)

	reporter := health.NewReporter()
	mux := follower.NewMuxer(fol, netCtx, peers, reporter, genesis.Blocks()[0].Cid(), gossipSource.Out(), directTipsets)

	log.Infow("chainsyncd starting", "peer_id", h.ID(), "genesis", genesis.Key())
	mux.Run(ctx)
	log.Info("chainsyncd shutting down")
}

// mustDevnetGenesis builds a single-block, zero-height tipset to seed the
// follower and chain index with: a real genesis car file's contents are an
// external collaborator this module only consumes by CID, never produces.
func mustDevnetGenesis() *types.TipSet {
	miner, err := address.NewIDAddress(0)
	if err != nil {
		panic(err)
	}
	header := &types.BlockHeader{
		Miner:           miner,
		Parents:         types.NewTipSetKey(),
		Height:          0,
		ParentWeight:    big.Zero(),
		ParentStateRoot: cid.Undef,
		Messages:        cid.Undef,
		Timestamp:       uint64(time.Now().Unix()),
	}
	ts, err := types.NewTipSet([]*types.BlockHeader{header})
	if err != nil {
		panic(err)
	}
	return ts
}
