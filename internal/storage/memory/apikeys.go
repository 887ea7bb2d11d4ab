package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// APIKeyStore keeps encrypted exchange credentials per user.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys []*domain.APIKey
}

// NewAPIKeyStore creates an empty in-memory API key repository.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{}
}

// Put stores a key.
func (s *APIKeyStore) Put(_ context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *key
	s.keys = append(s.keys, &cp)
	return nil
}

// ActiveByUser returns the user's most recently stored active key or
// domain.ErrNotFound.
func (s *APIKeyStore) ActiveByUser(_ context.Context, userID uuid.UUID) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.keys) - 1; i >= 0; i-- {
		if s.keys[i].UserID == userID && s.keys[i].IsActive {
			cp := *s.keys[i]
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "active api key for user %s", userID)
}
