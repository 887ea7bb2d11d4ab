package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a trade record.
type TradeStatus string

const (
	TradeStatusPending TradeStatus = "PENDING"
	TradeStatusFilled  TradeStatus = "FILLED"
	TradeStatusFailed  TradeStatus = "FAILED"
)

// TradeRecord is the durable audit record of one execution attempt.
// Exactly one record exists per (user, signal) attempt; failed submissions
// are recorded too so the trail stays complete.
type TradeRecord struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	SignalID        *uuid.UUID
	TraderID        *uuid.UUID
	Symbol          string
	Side            Side
	OrderType       OrderType
	ExchangeOrderID string
	Status          TradeStatus
	RequestedAmount decimal.Decimal
	ExecutedQty     decimal.Decimal
	ExecutedPrice   decimal.Decimal
	ExecutedValue   decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	ClosePrice      *decimal.Decimal
	ClosedAt        *time.Time
	RealizedPnl     *decimal.Decimal
	RealizedPnlPct  *decimal.Decimal
	Mode            ExecMode
	ErrorMessage    string
	ExecutedAt      *time.Time
	CreatedAt       time.Time
}
