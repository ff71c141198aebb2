package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.TrackedSymbols)
	assert.Equal(t, time.Second, cfg.SnapshotInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	assert.Equal(t, int64(1<<30), cfg.StoreByteBudget)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
tracked_symbols: ["SOLUSDT"]
rest_rate: 5
microstructure:
  target_depth_usd: 250000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.TrackedSymbols)
	assert.Equal(t, 5.0, cfg.RestRatePerSecond)
	assert.Equal(t, 250000.0, cfg.Microstructure.TargetDepthUSD)
	// Untouched fields keep their defaults.
	assert.Equal(t, 40, cfg.RestBurst)
}
