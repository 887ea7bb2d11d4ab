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

// TradeStore keeps trade records in insertion order.
type TradeStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.TradeRecord
	ordered []uuid.UUID
}

// NewTradeStore creates an empty in-memory trade repository.
func NewTradeStore() *TradeStore {
	return &TradeStore{byID: make(map[uuid.UUID]*domain.TradeRecord)}
}

// Save stores a copy of the record.
func (s *TradeStore) Save(_ context.Context, record *domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[record.ID]; !ok {
		s.ordered = append(s.ordered, record.ID)
	}
	cp := *record
	s.byID[record.ID] = &cp
	return nil
}

// GetByID returns a copy of the record or domain.ErrNotFound.
func (s *TradeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "trade %s", id)
	}
	cp := *rec
	return &cp, nil
}

// ListByUser returns the user's filtered trades, newest first.
func (s *TradeStore) ListByUser(_ context.Context, userID uuid.UUID, filter domain.TradeFilter) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TradeRecord, 0)
	for i := len(s.ordered) - 1; i >= 0; i-- {
		rec := s.byID[s.ordered[i]]
		if rec.UserID != userID || !matchesTrade(rec, filter) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// ExistsForUserSignal reports whether an execution attempt was already
// recorded for the pair.
func (s *TradeStore) ExistsForUserSignal(_ context.Context, userID, signalID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.byID {
		if rec.UserID == userID && rec.SignalID != nil && *rec.SignalID == signalID {
			return true, nil
		}
	}
	return false, nil
}

// UpdateClose records the closing fill and realized profit of a trade.
func (s *TradeStore) UpdateClose(_ context.Context, id uuid.UUID, closePrice, realizedPnl, realizedPnlPct decimal.Decimal, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "trade %s", id)
	}
	rec.ClosePrice = &closePrice
	rec.RealizedPnl = &realizedPnl
	rec.RealizedPnlPct = &realizedPnlPct
	rec.ClosedAt = &closedAt
	return nil
}

func matchesTrade(rec *domain.TradeRecord, f domain.TradeFilter) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Symbol != "" && rec.Symbol != f.Symbol {
		return false
	}
	if f.TraderID != nil && (rec.TraderID == nil || *rec.TraderID != *f.TraderID) {
		return false
	}
	if f.Since != nil && rec.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}
