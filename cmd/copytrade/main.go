// The copytrade service scans market data for indicator-based trading
// signals and copies actionable ones to followers, placing orders through
// their own exchange accounts.
//
// Usage:
//
//	copytrade --config config.yml
//
// Required environment variables:
//
//	ENCRYPTION_KEY                       64 hex chars, protects stored exchange API keys
//	BINANCE_API_KEY, BINANCE_API_SECRET  market data access when platform is binance
//	BYBIT_API_KEY, BYBIT_API_SECRET      market data access when platform is bybit
//
// Optional:
//
//	DATABASE_URL  postgres DSN; in-memory storage is used when unset
package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/config"
	"github.com/vadiminshakov/copytrade/internal/clients"
	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/events"
	"github.com/vadiminshakov/copytrade/internal/services/copytrade"
	"github.com/vadiminshakov/copytrade/internal/services/credentials"
	"github.com/vadiminshakov/copytrade/internal/services/execution"
	"github.com/vadiminshakov/copytrade/internal/services/indicators"
	"github.com/vadiminshakov/copytrade/internal/services/marketdata"
	"github.com/vadiminshakov/copytrade/internal/services/scanner"
	signalsvc "github.com/vadiminshakov/copytrade/internal/services/signal"
	"github.com/vadiminshakov/copytrade/internal/services/stats"
	"github.com/vadiminshakov/copytrade/internal/storage/journal"
	"github.com/vadiminshakov/copytrade/internal/storage/memory"
	"github.com/vadiminshakov/copytrade/internal/storage/postgres"
	"github.com/vadiminshakov/copytrade/internal/web"
)

const defaultJournalDir = "wal"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	market, resolver, err := buildMarketData(cfg)
	if err != nil {
		return err
	}

	cipher, err := credentials.NewCipher(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return errors.Wrap(err, "ENCRYPTION_KEY is missing or malformed")
	}

	journalDir := cfg.JournalDir
	if journalDir == "" {
		journalDir = defaultJournalDir
	}
	jrnl, err := journal.New(journalDir)
	if err != nil {
		return errors.Wrap(err, "failed to open the execution journal")
	}
	defer jrnl.Close()

	broadcaster := events.NewBroadcaster(logger)

	generator := signalsvc.NewGenerator(
		market,
		resolver,
		store.signals,
		indicators.NewEngine(indicators.Config{}),
		signalsvc.DefaultScoringConfig(),
		logger,
	)

	statistics := stats.NewService(store.trades, store.follows, logger)

	executor := execution.NewExecutor(
		store.trades,
		store.signals,
		credentials.NewStore(store.apiKeys, cipher),
		market,
		execution.NewBinanceGateway(),
		execution.NewRiskChecker(execution.RiskLimits{
			MaxPositionSize:   cfg.MaxPositionSize,
			DailyTradingLimit: cfg.DailyTradingLimit,
		}),
		statistics,
		jrnl,
		logger,
	)

	engine := copytrade.NewEngine(store.follows, executor, broadcaster, logger)

	scan := scanner.NewScanner(generator, engine, broadcaster, logger)
	if err := scan.AddJob(scanner.JobSpec{
		Name:       "market-scan",
		Schedule:   cfg.ScanSchedule,
		Symbols:    cfg.Symbols,
		Interval:   cfg.Interval,
		KlineLimit: cfg.KlineLimit,
	}); err != nil {
		return errors.Wrap(err, "failed to register the scan job")
	}
	if err := scan.AddExpirySweep(cfg.ExpirySchedule); err != nil {
		return errors.Wrap(err, "failed to register the expiry sweep")
	}
	scan.Start()
	defer scan.Stop()

	logger.Info("copytrade pipeline started",
		zap.String("platform", cfg.Platform),
		zap.Strings("symbols", cfg.Symbols),
		zap.String("schedule", cfg.ScanSchedule))

	return web.NewServer(cfg.WebAddr, broadcaster, jrnl, scan, statistics, executor, logger).Start(ctx)
}

type repositories struct {
	signals domain.SignalRepository
	trades  domain.TradeRepository
	follows domain.FollowRepository
	apiKeys domain.APIKeyRepository
}

func buildStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repositories, func(), error) {
	if cfg.PostgresDSN == "" {
		logger.Warn("DATABASE_URL is not set, state will not survive a restart")
		return &repositories{
			signals: memory.NewSignalStore(),
			trades:  memory.NewTradeStore(),
			follows: memory.NewFollowStore(),
			apiKeys: memory.NewAPIKeyStore(),
		}, func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to postgres")
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "failed to ensure the postgres schema")
	}

	return &repositories{
		signals: postgres.NewSignalRepository(pool),
		trades:  postgres.NewTradeRepository(pool),
		follows: postgres.NewFollowRepository(pool),
		apiKeys: postgres.NewAPIKeyRepository(pool),
	}, pool.Close, nil
}

func buildMarketData(cfg *config.Config) (marketdata.Provider, marketdata.SymbolResolver, error) {
	switch cfg.Platform {
	case "binance":
		apiKey, apiSecret := os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, nil, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET must be set")
		}
		client := clients.NewBinanceClient(apiKey, apiSecret)
		return marketdata.NewBinanceProvider(client), marketdata.NewBinanceSymbolResolver(client), nil
	case "bybit":
		apiKey, apiSecret := os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, nil, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
		}
		client := clients.NewBybitClient(apiKey, apiSecret)
		return marketdata.NewBybitProvider(client), marketdata.NewStaticSymbolResolver(cfg.Symbols), nil
	default:
		return nil, nil, errors.Errorf("unsupported platform %s", cfg.Platform)
	}
}
