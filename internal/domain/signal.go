package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignalType classifies a trading signal, ordered from strong sell to strong buy.
type SignalType string

const (
	SignalStrongSell SignalType = "STRONG_SELL"
	SignalSell       SignalType = "SELL"
	SignalNeutral    SignalType = "NEUTRAL"
	SignalBuy        SignalType = "BUY"
	SignalStrongBuy  SignalType = "STRONG_BUY"
)

// OrderSide returns the order side implied by the signal type.
// Neutral signals carry no side and return ok=false.
func (t SignalType) OrderSide() (Side, bool) {
	switch t {
	case SignalStrongBuy, SignalBuy:
		return SideBuy, true
	case SignalStrongSell, SignalSell:
		return SideSell, true
	default:
		return "", false
	}
}

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	SignalStatusPending   SignalStatus = "PENDING"
	SignalStatusExecuted  SignalStatus = "EXECUTED"
	SignalStatusExpired   SignalStatus = "EXPIRED"
	SignalStatusCancelled SignalStatus = "CANCELLED"
)

// CanTransitionTo reports whether the status change is allowed.
// Signals only move forward: PENDING is the sole mutable state.
func (s SignalStatus) CanTransitionTo(next SignalStatus) bool {
	if s != SignalStatusPending {
		return false
	}
	switch next {
	case SignalStatusExecuted, SignalStatusExpired, SignalStatusCancelled:
		return true
	}
	return false
}

// MACDSnapshot captures the trend oscillator state at signal time.
type MACDSnapshot struct {
	Value     *decimal.Decimal `json:"value"`
	Signal    *decimal.Decimal `json:"signal"`
	Histogram *decimal.Decimal `json:"histogram"`
	Trend     string           `json:"trend"`
	Crossover string           `json:"crossover"`
}

// RSISnapshot captures the momentum oscillator state at signal time.
type RSISnapshot struct {
	Value     *decimal.Decimal `json:"value"`
	Condition string           `json:"condition"`
}

// BollingerSnapshot captures the volatility band state at signal time.
type BollingerSnapshot struct {
	Upper     *decimal.Decimal `json:"upper"`
	Middle    *decimal.Decimal `json:"middle"`
	Lower     *decimal.Decimal `json:"lower"`
	Position  string           `json:"position"`
	Bandwidth *decimal.Decimal `json:"bandwidth"`
	Squeeze   bool             `json:"squeeze"`
}

// IndicatorSnapshot is the frozen indicator state that produced a signal,
// together with the human-readable reasons behind the score.
type IndicatorSnapshot struct {
	MACD      MACDSnapshot      `json:"macd"`
	RSI       RSISnapshot       `json:"rsi"`
	Bollinger BollingerSnapshot `json:"bollingerBands"`
	Reasons   []string          `json:"reasons"`
}

// Signal is a persisted, classified trading recommendation for one symbol
// at one point in time.
type Signal struct {
	ID         uuid.UUID
	Symbol     string
	Type       SignalType
	Price      decimal.Decimal
	Confidence float64 // 0..1
	Indicators IndicatorSnapshot
	Status     SignalStatus
	TraderID   *uuid.UUID
	StrategyID *uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ExecutedAt *time.Time
}
