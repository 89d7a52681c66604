// Package config loads the Config struct chain sync's components are built
// from, the way venus loads its own pkg/config: a TOML file decoded via
// github.com/BurntSushi/toml, with every field defaulting to the same
// constant the component itself would use if left unconfigured.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/blockvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/tipsetvalidator"
)

// Config is the top-level on-disk configuration for a chain-sync instance.
// Every section maps onto one component's own configuration through
// BlockValidatorConfig, TipsetValidatorConfig and BadBlockCacheSize, which
// copy the fields and turn a zero drift or cache size into the default.
type Config struct {
	BadBlock       BadBlockConfig       `toml:"bad_block"`
	TipsetValidate TipsetValidateConfig `toml:"tipset_validate"`
	BlockValidate  BlockValidateConfig  `toml:"block_validate"`
}

// BadBlockConfig configures the shared bad-block LRU cache (chainsync/badblock.Cache).
type BadBlockConfig struct {
	// CacheSize is the maximum number of condemned-block records retained;
	// 0 falls back to badblock.DefaultCacheSize.
	CacheSize int `toml:"cache_size"`
}

// TipsetValidateConfig configures chainsync/tipsetvalidator.Validator.
type TipsetValidateConfig struct {
	// AllowableClockDriftSecs is the max seconds a tipset's timestamp may
	// lead the local clock; 0 falls back to tipsetvalidator.DefaultAllowableClockDrift.
	AllowableClockDriftSecs int64 `toml:"allowable_clock_drift_secs"`
}

// BlockValidateConfig configures chainsync/blockvalidator.Validator.
type BlockValidateConfig struct {
	BlockDelaySecs           uint64 `toml:"block_delay_secs"`
	AllowableClockDriftSecs  int64  `toml:"allowable_clock_drift_secs"`
	SmokeHeight              int64  `toml:"smoke_height"`
	TicketRandomnessLookback int64  `toml:"ticket_randomness_lookback"`
	IgnoreDrand              bool   `toml:"ignore_drand"`
}

// Default returns the configuration every component would use if no file
// were loaded at all: every field set to its component's own constant.
func Default() Config {
	return Config{
		BadBlock: BadBlockConfig{CacheSize: badblock.DefaultCacheSize},
		TipsetValidate: TipsetValidateConfig{
			AllowableClockDriftSecs: int64(tipsetvalidator.DefaultAllowableClockDrift / time.Second),
		},
		BlockValidate: BlockValidateConfig{
			BlockDelaySecs:          30,
			AllowableClockDriftSecs: int64(tipsetvalidator.DefaultAllowableClockDrift / time.Second),
		},
	}
}

// Load decodes a TOML file at path into Config, starting from Default() so
// a partial file only overrides the sections it names.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unrecognized keys %v", path, undecoded)
	}
	return cfg, nil
}

// BlockValidatorConfig projects BlockValidateConfig onto
// blockvalidator.Config, applying the 0-means-default rule for drift.
func (c Config) BlockValidatorConfig() blockvalidator.Config {
	drift := time.Duration(c.BlockValidate.AllowableClockDriftSecs) * time.Second
	if drift == 0 {
		drift = tipsetvalidator.DefaultAllowableClockDrift
	}
	return blockvalidator.Config{
		BlockDelaySecs:           c.BlockValidate.BlockDelaySecs,
		AllowableClockDrift:      drift,
		SmokeHeight:              abi.ChainEpoch(c.BlockValidate.SmokeHeight),
		TicketRandomnessLookback: abi.ChainEpoch(c.BlockValidate.TicketRandomnessLookback),
		IgnoreDrand:              c.BlockValidate.IgnoreDrand,
	}
}

// TipsetValidatorConfig projects TipsetValidateConfig onto
// tipsetvalidator.Config.
func (c Config) TipsetValidatorConfig() tipsetvalidator.Config {
	drift := time.Duration(c.TipsetValidate.AllowableClockDriftSecs) * time.Second
	if drift == 0 {
		drift = tipsetvalidator.DefaultAllowableClockDrift
	}
	return tipsetvalidator.Config{AllowableClockDrift: drift}
}

// BadBlockCacheSize returns the configured cache size, or
// badblock.DefaultCacheSize if unset.
func (c Config) BadBlockCacheSize() int {
	if c.BadBlock.CacheSize <= 0 {
		return badblock.DefaultCacheSize
	}
	return c.BadBlock.CacheSize
}
