// Package signal turns indicator state into persisted, classified trading
// signals. Scoring is pure and deterministic; the generator adds market data
// retrieval, persistence and batch fan-out on top.
package signal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/services/indicators"
	"github.com/vadiminshakov/copytrade/internal/services/marketdata"
)

const (
	defaultKlineLimit = 100
	pendingTTL        = 24 * time.Hour

	// batch fan-out ceiling, keeps us under exchange rate limits
	maxConcurrentSymbols = 4
)

// Attribution optionally ties a generated signal to its source trader and
// strategy.
type Attribution struct {
	TraderID   *uuid.UUID
	StrategyID *uuid.UUID
}

// Generator produces signals for symbols by scoring fresh indicator data.
type Generator struct {
	market   marketdata.Provider
	resolver marketdata.SymbolResolver
	signals  domain.SignalRepository
	engine   *indicators.Engine
	scoring  ScoringConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator creates a signal generator.
func NewGenerator(
	market marketdata.Provider,
	resolver marketdata.SymbolResolver,
	signals domain.SignalRepository,
	engine *indicators.Engine,
	scoring ScoringConfig,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		market:   market,
		resolver: resolver,
		signals:  signals,
		engine:   engine,
		scoring:  scoring,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate scores one symbol and persists the resulting signal as pending.
// Returns domain.ErrSymbolUnresolved for unknown pairs and
// domain.ErrInsufficientData when history is shorter than the longest
// indicator warm-up.
func (g *Generator) Generate(ctx context.Context, symbol, interval string, limit int, attr Attribution) (*domain.Signal, error) {
	if limit <= 0 {
		limit = defaultKlineLimit
	}

	if err := g.resolver.Resolve(ctx, symbol); err != nil {
		return nil, err
	}

	candles, err := g.market.GetKlines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines for %s", symbol)
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	series, err := g.engine.ComputeAll(closes)
	if err != nil {
		return nil, err
	}

	price, err := g.market.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch current price for %s", symbol)
	}

	analysis := Analyze(g.scoring, series, price)

	now := g.now()
	sig := &domain.Signal{
		ID:         uuid.New(),
		Symbol:     symbol,
		Type:       analysis.Type,
		Price:      price,
		Confidence: analysis.Confidence / 100,
		Indicators: analysis.Snapshot,
		Status:     domain.SignalStatusPending,
		TraderID:   attr.TraderID,
		StrategyID: attr.StrategyID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(pendingTTL),
	}

	if err := g.signals.Save(ctx, sig); err != nil {
		return nil, errors.Wrap(err, "failed to save signal")
	}

	g.logger.Info("signal generated",
		zap.String("symbol", symbol),
		zap.String("type", string(sig.Type)),
		zap.Int("score", analysis.Score),
		zap.Float64("confidence", analysis.Confidence),
		zap.String("price", price.String()))

	return sig, nil
}

// GenerateBatch scores symbols concurrently. Each symbol is independent: one
// failure never aborts the batch. Signals come back in input order with the
// failed symbols skipped; their errors are keyed by symbol.
func (g *Generator) GenerateBatch(ctx context.Context, symbols []string, interval string, limit int, attr Attribution) ([]*domain.Signal, map[string]error) {
	generated := make([]*domain.Signal, len(symbols))

	var mu sync.Mutex
	failures := make(map[string]error)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentSymbols)

	for i, symbol := range symbols {
		eg.Go(func() error {
			sig, err := g.Generate(ctx, symbol, interval, limit, attr)
			if err != nil {
				g.logger.Warn("signal generation failed",
					zap.String("symbol", symbol),
					zap.Error(err))
				mu.Lock()
				failures[symbol] = err
				mu.Unlock()
				return nil
			}
			generated[i] = sig
			return nil
		})
	}
	_ = eg.Wait()

	signals := make([]*domain.Signal, 0, len(symbols))
	for _, sig := range generated {
		if sig != nil {
			signals = append(signals, sig)
		}
	}
	return signals, failures
}

// ExpireStale transitions pending signals past their TTL to expired and
// returns how many were swept.
func (g *Generator) ExpireStale(ctx context.Context) (int, error) {
	cutoff := g.now().Add(-pendingTTL)
	n, err := g.signals.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to expire stale signals")
	}
	if n > 0 {
		g.logger.Info("expired stale signals", zap.Int("count", n))
	}
	return n, nil
}
