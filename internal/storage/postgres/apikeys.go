package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// APIKeyRepository persists encrypted exchange credentials in postgres.
type APIKeyRepository struct {
	db *pgxpool.Pool
}

// NewAPIKeyRepository creates a postgres API key repository.
func NewAPIKeyRepository(db *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Put stores a key.
func (r *APIKeyRepository) Put(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, api_key_encrypted, api_secret_encrypted, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		key.ID, key.UserID, key.APIKeyEncrypted, key.APISecretEncrypted, key.IsActive, key.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to insert api key")
	}
	return nil
}

// ActiveByUser returns the user's most recent active key or domain.ErrNotFound.
func (r *APIKeyRepository) ActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.APIKey, error) {
	query := `
		SELECT id, user_id, api_key_encrypted, api_secret_encrypted, is_active, created_at
		FROM api_keys
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`
	var key domain.APIKey
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&key.ID, &key.UserID, &key.APIKeyEncrypted, &key.APISecretEncrypted, &key.IsActive, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(domain.ErrNotFound, "active api key for user %s", userID)
		}
		return nil, errors.Wrap(err, "failed to query api key")
	}
	return &key, nil
}
