package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// TradeRepository persists trade records in postgres.
type TradeRepository struct {
	db *pgxpool.Pool
}

// NewTradeRepository creates a postgres trade repository.
func NewTradeRepository(db *pgxpool.Pool) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, user_id, signal_id, trader_id, symbol, side, order_type,
	exchange_order_id, status, requested_amount, executed_qty, executed_price,
	executed_value, commission, commission_asset, close_price, closed_at,
	realized_pnl, realized_pnl_pct, mode, error_message, executed_at, created_at`

// Save inserts the record. The unique (user_id, signal_id) constraint is the
// database-level guard behind the one-record-per-attempt invariant.
func (r *TradeRepository) Save(ctx context.Context, rec *domain.TradeRecord) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.UserID, rec.SignalID, rec.TraderID, rec.Symbol, rec.Side,
		rec.OrderType, rec.ExchangeOrderID, rec.Status, rec.RequestedAmount,
		rec.ExecutedQty, rec.ExecutedPrice, rec.ExecutedValue, rec.Commission,
		rec.CommissionAsset, rec.ClosePrice, rec.ClosedAt, rec.RealizedPnl,
		rec.RealizedPnlPct, rec.Mode, rec.ErrorMessage, rec.ExecutedAt, rec.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to insert trade")
	}
	return nil
}

// GetByID returns the record or domain.ErrNotFound.
func (r *TradeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`
	rec, err := scanTrade(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(domain.ErrNotFound, "trade %s", id)
		}
		return nil, errors.Wrap(err, "failed to query trade")
	}
	return rec, nil
}

// ListByUser returns the user's filtered trades, newest first.
func (r *TradeRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.TradeFilter) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1`
	args := []interface{}{userID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Symbol != "" {
		add("symbol = $%d", filter.Symbol)
	}
	if filter.TraderID != nil {
		add("trader_id = $%d", *filter.TraderID)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query trades")
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan trade")
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

// ExistsForUserSignal reports whether an attempt was already recorded.
func (r *TradeRepository) ExistsForUserSignal(ctx context.Context, userID, signalID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trades WHERE user_id = $1 AND signal_id = $2)`,
		userID, signalID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check for existing trade")
	}
	return exists, nil
}

// UpdateClose records the closing fill and realized profit.
func (r *TradeRepository) UpdateClose(ctx context.Context, id uuid.UUID, closePrice, realizedPnl, realizedPnlPct decimal.Decimal, closedAt time.Time) error {
	query := `
		UPDATE trades
		SET close_price = $2, realized_pnl = $3, realized_pnl_pct = $4, closed_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, closePrice, realizedPnl, realizedPnlPct, closedAt)
	if err != nil {
		return errors.Wrap(err, "failed to update trade close")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "trade %s", id)
	}
	return nil
}

func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		rec       domain.TradeRecord
		closePx   decimal.NullDecimal
		pnl       decimal.NullDecimal
		pnlPct    decimal.NullDecimal
		closedAt  *time.Time
		execAt    *time.Time
		signalID  *uuid.UUID
		traderID  *uuid.UUID
	)
	err := row.Scan(&rec.ID, &rec.UserID, &signalID, &traderID, &rec.Symbol,
		&rec.Side, &rec.OrderType, &rec.ExchangeOrderID, &rec.Status,
		&rec.RequestedAmount, &rec.ExecutedQty, &rec.ExecutedPrice,
		&rec.ExecutedValue, &rec.Commission, &rec.CommissionAsset,
		&closePx, &closedAt, &pnl, &pnlPct, &rec.Mode, &rec.ErrorMessage,
		&execAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.SignalID = signalID
	rec.TraderID = traderID
	rec.ClosedAt = closedAt
	rec.ExecutedAt = execAt
	if closePx.Valid {
		rec.ClosePrice = &closePx.Decimal
	}
	if pnl.Valid {
		rec.RealizedPnl = &pnl.Decimal
	}
	if pnlPct.Valid {
		rec.RealizedPnlPct = &pnlPct.Decimal
	}
	return &rec, nil
}
