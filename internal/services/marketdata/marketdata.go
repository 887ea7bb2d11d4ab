// Package marketdata fetches prices and candlestick history from exchanges.
// The rest of the pipeline treats it as authoritative: empty or short
// results surface downstream as insufficient data, no extra staleness
// validation happens here.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// readTimeout bounds read-only market data calls when the caller supplied
// no deadline of its own.
const readTimeout = 5 * time.Second

// Provider serves current prices and kline history for one venue.
type Provider interface {
	// GetCurrentPrice returns the last traded price for the symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// GetKlines fetches up to limit candles for the symbol at the given
	// interval (e.g. "1m", "15m", "1h", "4h"), oldest first.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.Candle, error)
}

// SymbolResolver checks that a symbol is a known trading pair, registering
// it from the venue's listing when possible.
type SymbolResolver interface {
	// Resolve returns domain.ErrSymbolUnresolved when the symbol is not a
	// tradable pair and cannot be registered.
	Resolve(ctx context.Context, symbol string) error
}

func withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, readTimeout)
}
