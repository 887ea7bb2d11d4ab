package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// SignalRepository persists signals in postgres.
type SignalRepository struct {
	db *pgxpool.Pool
}

// NewSignalRepository creates a postgres signal repository.
func NewSignalRepository(db *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{db: db}
}

const signalColumns = `id, symbol, type, price, confidence, indicators, status,
	trader_id, strategy_id, created_at, expires_at, executed_at`

// Save inserts the signal.
func (r *SignalRepository) Save(ctx context.Context, sig *domain.Signal) error {
	indicators, err := json.Marshal(sig.Indicators)
	if err != nil {
		return errors.Wrap(err, "failed to marshal indicator snapshot")
	}

	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Exec(ctx, query,
		sig.ID, sig.Symbol, sig.Type, sig.Price, sig.Confidence, indicators,
		sig.Status, sig.TraderID, sig.StrategyID, sig.CreatedAt, sig.ExpiresAt, sig.ExecutedAt)
	if err != nil {
		return errors.Wrap(err, "failed to insert signal")
	}
	return nil
}

// GetByID returns the signal or domain.ErrNotFound.
func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`
	sig, err := scanSignal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(domain.ErrNotFound, "signal %s", id)
		}
		return nil, errors.Wrap(err, "failed to query signal")
	}
	return sig, nil
}

// UpdateStatus applies a forward-only lifecycle transition. Only PENDING
// rows move; a no-op update reports either a missing signal or an illegal
// transition.
func (r *SignalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SignalStatus, executedPrice *decimal.Decimal) error {
	query := `
		UPDATE signals
		SET status = $2,
		    price = COALESCE($3, price),
		    executed_at = CASE WHEN $2 = 'EXECUTED' THEN now() ELSE executed_at END
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, query, id, status, executedPrice)
	if err != nil {
		return errors.Wrap(err, "failed to update signal status")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.Errorf("signal %s cannot transition from %s to %s", id, current.Status, status)
}

// List returns filtered signals, newest first.
func (r *SignalRepository) List(ctx context.Context, filter domain.SignalFilter) ([]*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE true`
	args := make([]interface{}, 0, 6)

	add := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	if filter.Symbol != "" {
		add("symbol = $%d", filter.Symbol)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.TraderID != nil {
		add("trader_id = $%d", *filter.TraderID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query signals")
	}
	defer rows.Close()

	var signals []*domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan signal")
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// ExpirePendingBefore sweeps stale pending signals to expired.
func (r *SignalRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE signals
		SET status = 'EXPIRED'
		WHERE status = 'PENDING' AND created_at < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to expire signals")
	}
	return int(tag.RowsAffected()), nil
}

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var (
		sig        domain.Signal
		indicators []byte
	)
	err := row.Scan(&sig.ID, &sig.Symbol, &sig.Type, &sig.Price, &sig.Confidence,
		&indicators, &sig.Status, &sig.TraderID, &sig.StrategyID,
		&sig.CreatedAt, &sig.ExpiresAt, &sig.ExecutedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(indicators, &sig.Indicators); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal indicator snapshot")
	}
	return &sig, nil
}
