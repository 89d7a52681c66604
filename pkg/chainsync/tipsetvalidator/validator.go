// Package tipsetvalidator implements the cheap structural checks run on a
// candidate tipset before the expensive per-block validation pipeline:
// non-empty, internally consistent, not previously condemned, and not
// implausibly far from the local clock.
package tipsetvalidator

import (
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

var log = logging.Logger("tipsetvalidator")

// DefaultAllowableClockDrift is the network-configured constant most
// Filecoin-compatible networks use.
const DefaultAllowableClockDrift = 10 * time.Second

// Config parameterizes Validator's clock-drift tolerance.
type Config struct {
	AllowableClockDrift time.Duration
}

// DefaultConfig returns the network-standard 10s drift tolerance.
func DefaultConfig() Config {
	return Config{AllowableClockDrift: DefaultAllowableClockDrift}
}

// Validator runs the cheap pre-filter: structural soundness, the
// bad-block cache, and clock-drift bounds. It never touches the executor
// or any cryptographic verification — that's the block validator's job.
type Validator struct {
	cfg       Config
	badBlocks *badblock.Cache
	now       func() time.Time
}

// NewValidator constructs a Validator consulting badBlocks for condemned
// CIDs and using time.Now for wall-clock comparisons.
func NewValidator(cfg Config, badBlocks *badblock.Cache) *Validator {
	return &Validator{cfg: cfg, badBlocks: badBlocks, now: time.Now}
}

// Validate runs all five cheap checks against fts, returning the first
// failure encountered.
func (v *Validator) Validate(fts *types.FullTipset) error {
	ts := fts.TipSet()

	if len(ts.Blocks()) == 0 {
		return fmt.Errorf("invalid tipset: no blocks")
	}

	first := ts.Blocks()[0]
	for _, b := range ts.Blocks()[1:] {
		if b.Height != first.Height {
			return fmt.Errorf("invalid tipset: inconsistent epoch %d != %d", b.Height, first.Height)
		}
		if !b.Parents.Equals(first.Parents) {
			return fmt.Errorf("invalid tipset: inconsistent parents")
		}
	}

	for _, c := range ts.Cids() {
		if reason, ok := v.badBlocks.Get(c); ok {
			return fmt.Errorf("invalid tipset: block %s is bad: %s", c, reason)
		}
	}

	now := v.now()
	blockTime := time.Unix(int64(ts.MinTimestamp()), 0)
	if blockTime.After(now.Add(v.cfg.AllowableClockDrift)) {
		return fmt.Errorf("invalid tipset: timestamp %s is %s ahead of local clock, exceeding drift bound %s",
			blockTime, blockTime.Sub(now), v.cfg.AllowableClockDrift)
	}

	log.Debugw("tipset passed cheap validation", "epoch", ts.Epoch(), "key", ts.Key())
	return nil
}
