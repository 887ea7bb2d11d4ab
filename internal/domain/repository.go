package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignalFilter narrows signal listings. Zero values mean "any".
type SignalFilter struct {
	Symbol   string
	Type     SignalType
	Status   SignalStatus
	TraderID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Limit    int
}

// SignalRepository persists trading signals.
type SignalRepository interface {
	Save(ctx context.Context, signal *Signal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Signal, error)
	// UpdateStatus enforces the forward-only lifecycle: only PENDING signals
	// may change state. executedPrice is stored when the new status is EXECUTED.
	UpdateStatus(ctx context.Context, id uuid.UUID, status SignalStatus, executedPrice *decimal.Decimal) error
	List(ctx context.Context, filter SignalFilter) ([]*Signal, error)
	// ExpirePendingBefore marks PENDING signals created before the cutoff as
	// EXPIRED and returns how many were affected.
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TradeFilter narrows trade listings. Zero values mean "any".
type TradeFilter struct {
	Status   TradeStatus
	Symbol   string
	TraderID *uuid.UUID
	Since    *time.Time
	Limit    int
}

// TradeRepository persists trade records.
type TradeRepository interface {
	Save(ctx context.Context, record *TradeRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*TradeRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter TradeFilter) ([]*TradeRecord, error)
	// ExistsForUserSignal guards the one-record-per-(user, signal) invariant.
	ExistsForUserSignal(ctx context.Context, userID, signalID uuid.UUID) (bool, error)
	UpdateClose(ctx context.Context, id uuid.UUID, closePrice, realizedPnl, realizedPnlPct decimal.Decimal, closedAt time.Time) error
}

// FollowRepository stores follower→trader relationships and their configs.
type FollowRepository interface {
	// Put creates the relationship or replaces its config when the
	// (follower, trader) pair already exists.
	Put(ctx context.Context, rel *FollowRelationship) error
	ListByTrader(ctx context.Context, traderID uuid.UUID) ([]*FollowRelationship, error)
	Get(ctx context.Context, followerID, traderID uuid.UUID) (*FollowRelationship, error)
	UpdateConfig(ctx context.Context, followerID, traderID uuid.UUID, config CopyTradeConfig) error
	// Delete removes the relationship; deleting a missing pair is not an error.
	Delete(ctx context.Context, followerID, traderID uuid.UUID) error
}

// APIKeyRepository stores encrypted exchange credentials.
type APIKeyRepository interface {
	// ActiveByUser returns the user's active key or ErrNotFound.
	ActiveByUser(ctx context.Context, userID uuid.UUID) (*APIKey, error)
}
