// Package memory provides map-backed repository implementations guarded by
// mutexes. They serve unit tests and single-process deployments where
// Postgres durability is not required.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// SignalStore keeps signals in insertion order.
type SignalStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.Signal
	ordered []uuid.UUID
	now     func() time.Time
}

// NewSignalStore creates an empty in-memory signal repository.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		byID: make(map[uuid.UUID]*domain.Signal),
		now:  time.Now,
	}
}

// Save stores a copy of the signal.
func (s *SignalStore) Save(_ context.Context, signal *domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[signal.ID]; !ok {
		s.ordered = append(s.ordered, signal.ID)
	}
	cp := *signal
	s.byID[signal.ID] = &cp
	return nil
}

// GetByID returns a copy of the signal or domain.ErrNotFound.
func (s *SignalStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.byID[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "signal %s", id)
	}
	cp := *sig
	return &cp, nil
}

// UpdateStatus applies a forward-only lifecycle transition.
func (s *SignalStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.SignalStatus, executedPrice *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.byID[id]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "signal %s", id)
	}
	if !sig.Status.CanTransitionTo(status) {
		return errors.Errorf("signal %s cannot transition from %s to %s", id, sig.Status, status)
	}

	sig.Status = status
	if status == domain.SignalStatusExecuted {
		now := s.now()
		sig.ExecutedAt = &now
		if executedPrice != nil {
			sig.Price = *executedPrice
		}
	}
	return nil
}

// List returns filtered signals, newest first.
func (s *SignalStore) List(_ context.Context, filter domain.SignalFilter) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Signal, 0)
	for i := len(s.ordered) - 1; i >= 0; i-- {
		sig := s.byID[s.ordered[i]]
		if !matchesSignal(sig, filter) {
			continue
		}
		cp := *sig
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// ExpirePendingBefore sweeps stale pending signals to expired.
func (s *SignalStore) ExpirePendingBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sig := range s.byID {
		if sig.Status == domain.SignalStatusPending && sig.CreatedAt.Before(cutoff) {
			sig.Status = domain.SignalStatusExpired
			count++
		}
	}
	return count, nil
}

func matchesSignal(sig *domain.Signal, f domain.SignalFilter) bool {
	if f.Symbol != "" && sig.Symbol != f.Symbol {
		return false
	}
	if f.Type != "" && sig.Type != f.Type {
		return false
	}
	if f.Status != "" && sig.Status != f.Status {
		return false
	}
	if f.TraderID != nil && (sig.TraderID == nil || *sig.TraderID != *f.TraderID) {
		return false
	}
	if f.From != nil && sig.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && sig.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
