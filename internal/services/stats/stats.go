// Package stats aggregates trade statistics per user, follower and day.
// All aggregates are computed fresh from the trade repository on every call.
package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// UserStats summarizes one user's trading history.
type UserStats struct {
	TotalTrades     int             `json:"totalTrades"`
	FilledTrades    int             `json:"filledTrades"`
	FailedTrades    int             `json:"failedTrades"`
	ClosedTrades    int             `json:"closedTrades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         float64         `json:"winRate"` // percent of closed trades with positive pnl
	TotalVolume     decimal.Decimal `json:"totalVolume"`
	AvgTradeSize    decimal.Decimal `json:"avgTradeSize"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	RealizedPnl     decimal.Decimal `json:"realizedPnl"`
	LargestWin      decimal.Decimal `json:"largestWin"`
	LargestLoss     decimal.Decimal `json:"largestLoss"`
}

// FollowStats summarizes what a follower copied from one trader.
type FollowStats struct {
	CopiedTrades int             `json:"copiedTrades"`
	TotalVolume  decimal.Decimal `json:"totalVolume"`
	RealizedPnl  decimal.Decimal `json:"realizedPnl"`
}

// DailyVolume is the filled quote volume of one local calendar day.
type DailyVolume struct {
	Day    time.Time       `json:"day"` // local midnight
	Volume decimal.Decimal `json:"volume"`
	Trades int             `json:"trades"`
}

// Service computes trade aggregates.
type Service struct {
	trades  domain.TradeRepository
	follows domain.FollowRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a stats service.
func NewService(trades domain.TradeRepository, follows domain.FollowRepository, logger *zap.Logger) *Service {
	return &Service{
		trades:  trades,
		follows: follows,
		logger:  logger,
		now:     time.Now,
	}
}

// UserStats aggregates the user's full trade history.
func (s *Service) UserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	trades, err := s.trades.ListByUser(ctx, userID, domain.TradeFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trades")
	}

	stats := &UserStats{
		TotalVolume:     decimal.Zero,
		AvgTradeSize:    decimal.Zero,
		TotalCommission: decimal.Zero,
		RealizedPnl:     decimal.Zero,
		LargestWin:      decimal.Zero,
		LargestLoss:     decimal.Zero,
	}
	for _, t := range trades {
		stats.TotalTrades++
		switch t.Status {
		case domain.TradeStatusFilled:
			stats.FilledTrades++
			stats.TotalVolume = stats.TotalVolume.Add(t.ExecutedValue)
			stats.TotalCommission = stats.TotalCommission.Add(t.Commission)
		case domain.TradeStatusFailed:
			stats.FailedTrades++
		}

		if t.RealizedPnl == nil {
			continue
		}
		stats.ClosedTrades++
		stats.RealizedPnl = stats.RealizedPnl.Add(*t.RealizedPnl)
		if t.RealizedPnl.Sign() > 0 {
			stats.Wins++
			if t.RealizedPnl.GreaterThan(stats.LargestWin) {
				stats.LargestWin = *t.RealizedPnl
			}
		} else {
			stats.Losses++
			if t.RealizedPnl.LessThan(stats.LargestLoss) {
				stats.LargestLoss = *t.RealizedPnl
			}
		}
	}

	if stats.FilledTrades > 0 {
		stats.AvgTradeSize = stats.TotalVolume.Div(decimal.NewFromInt(int64(stats.FilledTrades)))
	}
	if stats.ClosedTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.ClosedTrades) * 100
	}
	return stats, nil
}

// FollowStats aggregates the trades a follower copied from one trader.
func (s *Service) FollowStats(ctx context.Context, followerID, traderID uuid.UUID) (*FollowStats, error) {
	trades, err := s.trades.ListByUser(ctx, followerID, domain.TradeFilter{
		Status:   domain.TradeStatusFilled,
		TraderID: &traderID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list copied trades")
	}

	stats := &FollowStats{
		TotalVolume: decimal.Zero,
		RealizedPnl: decimal.Zero,
	}
	for _, t := range trades {
		stats.CopiedTrades++
		stats.TotalVolume = stats.TotalVolume.Add(t.ExecutedValue)
		if t.RealizedPnl != nil {
			stats.RealizedPnl = stats.RealizedPnl.Add(*t.RealizedPnl)
		}
	}
	return stats, nil
}

// FollowerCount returns how many users currently copy the trader.
func (s *Service) FollowerCount(ctx context.Context, traderID uuid.UUID) (int, error) {
	followers, err := s.follows.ListByTrader(ctx, traderID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list followers")
	}
	return len(followers), nil
}

// TodayVolume sums the quote value of the user's trades filled since local
// midnight. The local day boundary matches the daily risk limit window.
func (s *Service) TodayVolume(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	midnight := localMidnight(s.now())
	trades, err := s.trades.ListByUser(ctx, userID, domain.TradeFilter{
		Status: domain.TradeStatusFilled,
		Since:  &midnight,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to list today's trades")
	}

	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.ExecutedValue)
	}
	return total, nil
}

// DailyVolumes buckets the user's filled volume per local day over the last
// days days, oldest first. Days without trades appear with zero volume.
func (s *Service) DailyVolumes(ctx context.Context, userID uuid.UUID, days int) ([]DailyVolume, error) {
	if days <= 0 {
		days = 7
	}

	today := localMidnight(s.now())
	since := today.AddDate(0, 0, -(days - 1))

	trades, err := s.trades.ListByUser(ctx, userID, domain.TradeFilter{
		Status: domain.TradeStatusFilled,
		Since:  &since,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trades")
	}

	buckets := make([]DailyVolume, days)
	for i := range buckets {
		buckets[i] = DailyVolume{
			Day:    since.AddDate(0, 0, i),
			Volume: decimal.Zero,
		}
	}

	for _, t := range trades {
		day := localMidnight(t.CreatedAt)
		idx := int(day.Sub(since).Hours() / 24)
		if idx < 0 || idx >= days {
			continue
		}
		buckets[idx].Volume = buckets[idx].Volume.Add(t.ExecutedValue)
		buckets[idx].Trades++
	}
	return buckets, nil
}

// CloseTrade records the closing price of a filled trade together with the
// caller's realized profit. The percentage is the price move relative to the
// executed price, independent of side. A trade closes at most once.
func (s *Service) CloseTrade(ctx context.Context, userID, tradeID uuid.UUID, closePrice, realizedPnl decimal.Decimal) (*domain.TradeRecord, error) {
	if closePrice.Sign() <= 0 {
		return nil, errors.Errorf("close price must be positive, got %s", closePrice)
	}

	rec, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, errors.Wrapf(domain.ErrNotFound, "trade %s", tradeID)
	}
	if rec.Status != domain.TradeStatusFilled {
		return nil, errors.Errorf("trade %s is %s, only filled trades close", tradeID, rec.Status)
	}
	if rec.ClosedAt != nil {
		return nil, errors.Errorf("trade %s is already closed", tradeID)
	}
	if rec.ExecutedPrice.Sign() <= 0 {
		return nil, errors.Errorf("trade %s has no executed price", tradeID)
	}

	pnlPct := closePrice.Sub(rec.ExecutedPrice).Div(rec.ExecutedPrice).Mul(decimal.NewFromInt(100))

	closedAt := s.now()
	if err := s.trades.UpdateClose(ctx, tradeID, closePrice, realizedPnl, pnlPct, closedAt); err != nil {
		return nil, errors.Wrap(err, "failed to store trade close")
	}

	s.logger.Info("trade closed",
		zap.String("trade", tradeID.String()),
		zap.String("symbol", rec.Symbol),
		zap.String("pnl", realizedPnl.String()),
		zap.String("pnlPct", pnlPct.StringFixed(2)))

	return s.trades.GetByID(ctx, tradeID)
}

func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
