// Package domain defines core data structures shared across the copy-trade pipeline.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV candlestick for one symbol and interval.
type Candle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}
