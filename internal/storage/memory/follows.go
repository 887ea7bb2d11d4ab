package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

type followKey struct {
	follower uuid.UUID
	trader   uuid.UUID
}

// FollowStore keeps follower→trader relationships.
type FollowStore struct {
	mu      sync.RWMutex
	byKey   map[followKey]*domain.FollowRelationship
	ordered []followKey
}

// NewFollowStore creates an empty in-memory follow repository.
func NewFollowStore() *FollowStore {
	return &FollowStore{byKey: make(map[followKey]*domain.FollowRelationship)}
}

// Put creates or replaces a relationship.
func (s *FollowStore) Put(_ context.Context, rel *domain.FollowRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := followKey{follower: rel.FollowerID, trader: rel.TraderID}
	if _, ok := s.byKey[key]; !ok {
		s.ordered = append(s.ordered, key)
	}
	cp := *rel
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.byKey[key] = &cp
	return nil
}

// ListByTrader returns the trader's followers in subscription order.
func (s *FollowStore) ListByTrader(_ context.Context, traderID uuid.UUID) ([]*domain.FollowRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.FollowRelationship, 0)
	for _, key := range s.ordered {
		if key.trader != traderID {
			continue
		}
		cp := *s.byKey[key]
		out = append(out, &cp)
	}
	return out, nil
}

// Get returns the relationship or domain.ErrNotFound.
func (s *FollowStore) Get(_ context.Context, followerID, traderID uuid.UUID) (*domain.FollowRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.byKey[followKey{follower: followerID, trader: traderID}]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "follow %s -> %s", followerID, traderID)
	}
	cp := *rel
	return &cp, nil
}

// UpdateConfig replaces the relationship's copy-trade config.
func (s *FollowStore) UpdateConfig(_ context.Context, followerID, traderID uuid.UUID, config domain.CopyTradeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.byKey[followKey{follower: followerID, trader: traderID}]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "follow %s -> %s", followerID, traderID)
	}
	rel.Config = config
	return nil
}

// Delete removes the relationship; deleting a missing pair is a no-op.
func (s *FollowStore) Delete(_ context.Context, followerID, traderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := followKey{follower: followerID, trader: traderID}
	if _, ok := s.byKey[key]; !ok {
		return nil
	}
	delete(s.byKey, key)
	for i, k := range s.ordered {
		if k == key {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	return nil
}
