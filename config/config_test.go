package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetYaml(t *testing.T) {
	raw := `
platform: binance
symbols:
  - BTCUSDT
  - ETHUSDT
interval: 15m
scan_schedule: "*/5 * * * *"
max_position_size: "2500"
daily_trading_limit: "4000"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := getYaml(path)
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Platform)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, "15m", cfg.Interval)
	assert.Equal(t, "*/5 * * * *", cfg.ScanSchedule)
	assert.True(t, cfg.MaxPositionSize.Equal(decimal.NewFromInt(2500)))
	assert.True(t, cfg.DailyTradingLimit.Equal(decimal.NewFromInt(4000)))

	// defaults filled in
	assert.Equal(t, 100, cfg.KlineLimit)
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.Equal(t, "0 * * * *", cfg.ExpirySchedule)
}

func TestGetYamlRejectsUnknownPlatform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: kraken\nsymbols: [BTCUSDT]\n"), 0o600))

	_, err := getYaml(path)
	require.Error(t, err)
}

func TestGetYamlRequiresSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: binance\n"), 0o600))

	_, err := getYaml(path)
	require.Error(t, err)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, splitSymbols("btcusdt, ETHUSDT ,"))
}
