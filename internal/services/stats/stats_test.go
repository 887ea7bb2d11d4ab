package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func filledTrade(userID uuid.UUID, symbol string, value string, createdAt time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:            uuid.New(),
		UserID:        userID,
		Symbol:        symbol,
		Side:          domain.SideBuy,
		OrderType:     domain.OrderTypeMarket,
		Status:        domain.TradeStatusFilled,
		ExecutedQty:   d("1"),
		ExecutedPrice: d(value),
		ExecutedValue: d(value),
		CreatedAt:     createdAt,
	}
}

func newService(t *testing.T) (*Service, *memory.TradeStore, *memory.FollowStore) {
	t.Helper()
	trades := memory.NewTradeStore()
	follows := memory.NewFollowStore()
	return NewService(trades, follows, zap.NewNop()), trades, follows
}

func TestUserStats(t *testing.T) {
	svc, trades, _ := newService(t)
	userID := uuid.New()
	ctx := context.Background()
	now := time.Now()

	win := filledTrade(userID, "BTCUSDT", "1000", now)
	pnl := d("50")
	pct := d("5")
	win.RealizedPnl = &pnl
	win.RealizedPnlPct = &pct
	win.Commission = d("1")
	require.NoError(t, trades.Save(ctx, win))

	loss := filledTrade(userID, "ETHUSDT", "500", now)
	lossPnl := d("-25")
	loss.RealizedPnl = &lossPnl
	require.NoError(t, trades.Save(ctx, loss))

	require.NoError(t, trades.Save(ctx, filledTrade(userID, "BNBUSDT", "200", now)))

	failed := filledTrade(userID, "BTCUSDT", "300", now)
	failed.Status = domain.TradeStatusFailed
	failed.ExecutedValue = decimal.Zero
	require.NoError(t, trades.Save(ctx, failed))

	got, err := svc.UserStats(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, 4, got.TotalTrades)
	assert.Equal(t, 3, got.FilledTrades)
	assert.Equal(t, 1, got.FailedTrades)
	assert.Equal(t, 2, got.ClosedTrades)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.InDelta(t, 50.0, got.WinRate, 1e-9)
	assert.True(t, got.TotalVolume.Equal(d("1700")))
	assert.True(t, got.RealizedPnl.Equal(d("25")))
	assert.True(t, got.AvgTradeSize.Round(2).Equal(d("566.67")), "avg %s", got.AvgTradeSize)
	assert.True(t, got.TotalCommission.Equal(d("1")))
	assert.True(t, got.LargestWin.Equal(d("50")))
	assert.True(t, got.LargestLoss.Equal(d("-25")))
}

func TestUserStatsEmpty(t *testing.T) {
	svc, _, _ := newService(t)

	got, err := svc.UserStats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, got.TotalTrades)
	assert.Zero(t, got.WinRate)
	assert.True(t, got.TotalVolume.IsZero())
}

func TestFollowStats(t *testing.T) {
	svc, trades, _ := newService(t)
	followerID := uuid.New()
	traderID := uuid.New()
	otherTrader := uuid.New()
	ctx := context.Background()
	now := time.Now()

	copied := filledTrade(followerID, "BTCUSDT", "1000", now)
	copied.TraderID = &traderID
	require.NoError(t, trades.Save(ctx, copied))

	other := filledTrade(followerID, "ETHUSDT", "500", now)
	other.TraderID = &otherTrader
	require.NoError(t, trades.Save(ctx, other))

	got, err := svc.FollowStats(ctx, followerID, traderID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CopiedTrades)
	assert.True(t, got.TotalVolume.Equal(d("1000")))
}

func TestTodayVolumeIgnoresYesterday(t *testing.T) {
	svc, trades, _ := newService(t)
	userID := uuid.New()
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	require.NoError(t, trades.Save(ctx, filledTrade(userID, "BTCUSDT", "1000", base.Add(-time.Hour))))
	require.NoError(t, trades.Save(ctx, filledTrade(userID, "BTCUSDT", "700", base.Add(-20*time.Hour))))

	got, err := svc.TodayVolume(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("1000")), "got %s", got)
}

func TestDailyVolumes(t *testing.T) {
	svc, trades, _ := newService(t)
	userID := uuid.New()
	ctx := context.Background()

	base := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	require.NoError(t, trades.Save(ctx, filledTrade(userID, "BTCUSDT", "100", base)))
	require.NoError(t, trades.Save(ctx, filledTrade(userID, "BTCUSDT", "200", base.AddDate(0, 0, -1))))
	require.NoError(t, trades.Save(ctx, filledTrade(userID, "BTCUSDT", "400", base.AddDate(0, 0, -1))))

	got, err := svc.DailyVolumes(ctx, userID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].Volume.IsZero())
	assert.True(t, got[1].Volume.Equal(d("600")))
	assert.Equal(t, 2, got[1].Trades)
	assert.True(t, got[2].Volume.Equal(d("100")))
}

func TestCloseTrade(t *testing.T) {
	svc, trades, _ := newService(t)
	userID := uuid.New()
	ctx := context.Background()

	rec := &domain.TradeRecord{
		ID:            uuid.New(),
		UserID:        userID,
		Symbol:        "BTCUSDT",
		Side:          domain.SideBuy,
		Status:        domain.TradeStatusFilled,
		ExecutedQty:   d("0.5"),
		ExecutedPrice: d("50000"),
		ExecutedValue: d("25000"),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, trades.Save(ctx, rec))

	closed, err := svc.CloseTrade(ctx, userID, rec.ID, d("55000"), d("2500"))
	require.NoError(t, err)

	require.NotNil(t, closed.RealizedPnl)
	assert.True(t, closed.RealizedPnl.Equal(d("2500")), "pnl %s", closed.RealizedPnl)
	require.NotNil(t, closed.RealizedPnlPct)
	assert.True(t, closed.RealizedPnlPct.Equal(d("10")), "pnlPct %s", closed.RealizedPnlPct)
	require.NotNil(t, closed.ClosedAt)

	// a second close must be rejected
	_, err = svc.CloseTrade(ctx, userID, rec.ID, d("60000"), d("5000"))
	require.Error(t, err)
}

func TestCloseTradeSellSide(t *testing.T) {
	svc, trades, _ := newService(t)
	userID := uuid.New()
	ctx := context.Background()

	rec := &domain.TradeRecord{
		ID:            uuid.New(),
		UserID:        userID,
		Symbol:        "ETHUSDT",
		Side:          domain.SideSell,
		Status:        domain.TradeStatusFilled,
		ExecutedQty:   d("2"),
		ExecutedPrice: d("3000"),
		ExecutedValue: d("6000"),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, trades.Save(ctx, rec))

	closed, err := svc.CloseTrade(ctx, userID, rec.ID, d("2700"), d("600"))
	require.NoError(t, err)

	// the realized profit on the short is the caller's number; the
	// percentage tracks the raw price move and stays negative
	assert.True(t, closed.RealizedPnl.Equal(d("600")), "pnl %s", closed.RealizedPnl)
	assert.True(t, closed.RealizedPnlPct.Equal(d("-10")), "pnlPct %s", closed.RealizedPnlPct)
}

func TestCloseTradeGuards(t *testing.T) {
	svc, trades, _ := newService(t)
	userID := uuid.New()
	ctx := context.Background()

	rec := filledTrade(userID, "BTCUSDT", "1000", time.Now())
	require.NoError(t, trades.Save(ctx, rec))

	// wrong owner reads as not found
	_, err := svc.CloseTrade(ctx, uuid.New(), rec.ID, d("1100"), d("100"))
	require.Error(t, err)

	// non-positive close price
	_, err = svc.CloseTrade(ctx, userID, rec.ID, d("0"), d("100"))
	require.Error(t, err)

	// failed trades never close
	failed := filledTrade(userID, "BTCUSDT", "1000", time.Now())
	failed.Status = domain.TradeStatusFailed
	require.NoError(t, trades.Save(ctx, failed))
	_, err = svc.CloseTrade(ctx, userID, failed.ID, d("1100"), d("100"))
	require.Error(t, err)
}
