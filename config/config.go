// Package config loads the pipeline configuration from a YAML file or CLI
// flags. Exchange credentials and the encryption key never live in the
// config file; they come from the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	Platform          string
	Symbols           []string
	Interval          string
	KlineLimit        int
	ScanSchedule      string
	ExpirySchedule    string
	WebAddr           string
	PostgresDSN       string
	JournalDir        string
	MaxPositionSize   decimal.Decimal
	DailyTradingLimit decimal.Decimal
	ShutdownTimeout   time.Duration
}

type configTmp struct {
	Platform             string   `yaml:"platform"`
	Symbols              []string `yaml:"symbols"`
	Interval             string   `yaml:"interval"`
	KlineLimit           int      `yaml:"kline_limit"`
	ScanSchedule         string   `yaml:"scan_schedule"`
	ExpirySchedule       string   `yaml:"expiry_schedule"`
	WebAddr              string   `yaml:"web_addr"`
	PostgresDSN          string   `yaml:"postgres_dsn"`
	JournalDir           string   `yaml:"journal_dir"`
	MaxPositionSizeStr   string   `yaml:"max_position_size,omitempty"`
	DailyTradingLimitStr string   `yaml:"daily_trading_limit,omitempty"`
}

// Get parses flags and, when --config is given, the YAML file it points to.
func Get() (*Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "binance", "market data platform: binance or bybit")
	symbols := flag.String("symbols", "BTCUSDT,ETHUSDT,BNBUSDT", "comma-separated symbols to scan")
	interval := flag.String("interval", "1h", "kline interval, example: 15m, 1h, 4h")
	schedule := flag.String("schedule", "*/15 * * * *", "cron schedule for the signal scan")
	webAddr := flag.String("webaddr", ":8080", "address of the live-update web server")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := &Config{
		Platform:     *platform,
		Symbols:      splitSymbols(*symbols),
		Interval:     *interval,
		ScanSchedule: *schedule,
		WebAddr:      *webAddr,
		PostgresDSN:  os.Getenv("DATABASE_URL"),
	}
	return withDefaults(cfg)
}

func getYaml(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, err
	}

	cfg := &Config{
		Platform:       tmp.Platform,
		Symbols:        tmp.Symbols,
		Interval:       tmp.Interval,
		KlineLimit:     tmp.KlineLimit,
		ScanSchedule:   tmp.ScanSchedule,
		ExpirySchedule: tmp.ExpirySchedule,
		WebAddr:        tmp.WebAddr,
		PostgresDSN:    tmp.PostgresDSN,
		JournalDir:     tmp.JournalDir,
	}
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = os.Getenv("DATABASE_URL")
	}

	if tmp.MaxPositionSizeStr != "" {
		cfg.MaxPositionSize, err = decimal.NewFromString(tmp.MaxPositionSizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid max_position_size %q: %w", tmp.MaxPositionSizeStr, err)
		}
	}
	if tmp.DailyTradingLimitStr != "" {
		cfg.DailyTradingLimit, err = decimal.NewFromString(tmp.DailyTradingLimitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid daily_trading_limit %q: %w", tmp.DailyTradingLimitStr, err)
		}
	}

	return withDefaults(cfg)
}

func withDefaults(cfg *Config) (*Config, error) {
	if cfg.Platform == "" {
		cfg.Platform = "binance"
	}
	if cfg.Platform != "binance" && cfg.Platform != "bybit" {
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.KlineLimit == 0 {
		cfg.KlineLimit = 100
	}
	if cfg.ScanSchedule == "" {
		cfg.ScanSchedule = "*/15 * * * *"
	}
	if cfg.ExpirySchedule == "" {
		cfg.ExpirySchedule = "0 * * * *"
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg, nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}
