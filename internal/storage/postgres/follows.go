package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// FollowRepository persists follow relationships in postgres.
type FollowRepository struct {
	db *pgxpool.Pool
}

// NewFollowRepository creates a postgres follow repository.
func NewFollowRepository(db *pgxpool.Pool) *FollowRepository {
	return &FollowRepository{db: db}
}

// Put creates the relationship or replaces its config.
func (r *FollowRepository) Put(ctx context.Context, rel *domain.FollowRelationship) error {
	config, err := json.Marshal(rel.Config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal copy-trade config")
	}

	query := `
		INSERT INTO follows (follower_id, trader_id, config, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (follower_id, trader_id) DO UPDATE SET config = EXCLUDED.config
	`
	_, err = r.db.Exec(ctx, query, rel.FollowerID, rel.TraderID, config, rel.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to upsert follow relationship")
	}
	return nil
}

// ListByTrader returns the trader's followers, oldest subscription first.
func (r *FollowRepository) ListByTrader(ctx context.Context, traderID uuid.UUID) ([]*domain.FollowRelationship, error) {
	query := `
		SELECT follower_id, trader_id, config, created_at
		FROM follows
		WHERE trader_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, traderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query followers")
	}
	defer rows.Close()

	var rels []*domain.FollowRelationship
	for rows.Next() {
		rel, err := scanFollow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan follow relationship")
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// Get returns the relationship or domain.ErrNotFound.
func (r *FollowRepository) Get(ctx context.Context, followerID, traderID uuid.UUID) (*domain.FollowRelationship, error) {
	query := `
		SELECT follower_id, trader_id, config, created_at
		FROM follows
		WHERE follower_id = $1 AND trader_id = $2
	`
	rel, err := scanFollow(r.db.QueryRow(ctx, query, followerID, traderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(domain.ErrNotFound, "follow %s -> %s", followerID, traderID)
		}
		return nil, errors.Wrap(err, "failed to query follow relationship")
	}
	return rel, nil
}

// UpdateConfig replaces the relationship's copy-trade config.
func (r *FollowRepository) UpdateConfig(ctx context.Context, followerID, traderID uuid.UUID, config domain.CopyTradeConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal copy-trade config")
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE follows SET config = $3 WHERE follower_id = $1 AND trader_id = $2`,
		followerID, traderID, raw)
	if err != nil {
		return errors.Wrap(err, "failed to update copy-trade config")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "follow %s -> %s", followerID, traderID)
	}
	return nil
}

// Delete removes the relationship; deleting a missing pair is a no-op.
func (r *FollowRepository) Delete(ctx context.Context, followerID, traderID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND trader_id = $2`,
		followerID, traderID)
	if err != nil {
		return errors.Wrap(err, "failed to delete follow relationship")
	}
	return nil
}

func scanFollow(row pgx.Row) (*domain.FollowRelationship, error) {
	var (
		rel    domain.FollowRelationship
		config []byte
	)
	if err := row.Scan(&rel.FollowerID, &rel.TraderID, &config, &rel.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(config, &rel.Config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal copy-trade config")
	}
	return &rel, nil
}
