package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/badblock"
)

func TestDefaultMatchesComponentDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, badblock.DefaultCacheSize, cfg.BadBlockCacheSize())
}

func TestLoadOverridesOnlyNamedSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chainsync.toml")
	contents := `
[bad_block]
cache_size = 4096

[block_validate]
block_delay_secs = 25
ignore_drand = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 4096, cfg.BadBlockCacheSize())
	require.Equal(t, uint64(25), cfg.BlockValidate.BlockDelaySecs)
	require.True(t, cfg.BlockValidate.IgnoreDrand)

	// Unnamed tipset_validate section still carries the component default.
	require.Equal(t, int64(10), cfg.TipsetValidate.AllowableClockDriftSecs)
}

func TestLoadRejectsUnrecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chainsync.toml")
	require.NoError(t, os.WriteFile(path, []byte("typo_section = true\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
