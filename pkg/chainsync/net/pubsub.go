package net

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// GossipBlock is the part of a blocks-topic payload this package decodes:
// the block header only — mirrors how Filecoin propagates newly-mined
// blocks one at a time rather than whole tipsets. Message CIDs in the
// payload are not decoded and no messages are fetched, so the tipsets Run
// emits carry blocks without messages.
type GossipBlock struct {
	Header *types.BlockHeader
}

// GossipTipsetSource subscribes to a libp2p-pubsub blocks topic and feeds
// decoded single-block tipsets to Muxer's networkTipsets channel — the
// concrete producer behind that channel's doc comment ("carries full
// tipsets assembled from gossipsub/bitswap").
type GossipTipsetSource struct {
	sub *pubsub.Subscription
	out chan *types.FullTipset
}

// NewGossipTipsetSource joins and subscribes to topicName on ps; it starts
// no goroutine. Call Run to decode and deliver messages, Out to receive.
func NewGossipTipsetSource(ps *pubsub.PubSub, topicName string) (*GossipTipsetSource, error) {
	topic, err := ps.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("joining pubsub topic %s: %w", topicName, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribing to pubsub topic %s: %w", topicName, err)
	}
	return &GossipTipsetSource{sub: sub, out: make(chan *types.FullTipset, 32)}, nil
}

// Out is the channel NewMuxer's networkTipsets parameter expects.
func (g *GossipTipsetSource) Out() <-chan *types.FullTipset { return g.out }

// Run decodes incoming gossip messages until ctx is cancelled, closing Out
// on exit. Malformed messages are logged and skipped rather than tearing
// down the subscription.
func (g *GossipTipsetSource) Run(ctx context.Context) {
	defer close(g.out)
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			return
		}

		var gb GossipBlock
		if err := cbor.Unmarshal(msg.Data, &gb); err != nil {
			log.Infow("dropping malformed gossip block", "err", err)
			continue
		}

		fts, err := types.NewFullTipset([]*types.Block{{Header: gb.Header}})
		if err != nil {
			log.Infow("dropping gossip block that fails tipset assembly", "err", err)
			continue
		}

		select {
		case g.out <- fts:
		case <-ctx.Done():
			return
		}
	}
}
