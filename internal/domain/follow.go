package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CopyTradeConfig is a follower's personal replication policy for one trader.
// Nil/empty optional fields mean "no restriction".
type CopyTradeConfig struct {
	AutoExecute       bool             `json:"autoExecute"`
	SymbolsFilter     []string         `json:"symbolsFilter,omitempty"`
	MaxAmountPerTrade *decimal.Decimal `json:"maxAmountPerTrade,omitempty"`
	MinConfidence     *float64         `json:"minConfidence,omitempty"` // 0..100
	SignalTypeFilter  []SignalType     `json:"signalTypeFilter,omitempty"`
}

// AllowsSymbol reports whether the symbol passes the allow-list.
func (c CopyTradeConfig) AllowsSymbol(symbol string) bool {
	if len(c.SymbolsFilter) == 0 {
		return true
	}
	for _, s := range c.SymbolsFilter {
		if s == symbol {
			return true
		}
	}
	return false
}

// AllowsSignalType reports whether the signal type passes the allow-list.
func (c CopyTradeConfig) AllowsSignalType(t SignalType) bool {
	if len(c.SignalTypeFilter) == 0 {
		return true
	}
	for _, st := range c.SignalTypeFilter {
		if st == t {
			return true
		}
	}
	return false
}

// FollowRelationship links a follower to a trader under a copy-trade config.
// The (follower, trader) pair is unique.
type FollowRelationship struct {
	FollowerID uuid.UUID
	TraderID   uuid.UUID
	Config     CopyTradeConfig
	CreatedAt  time.Time
}
