package signal

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/services/indicators"
	"github.com/vadiminshakov/copytrade/internal/storage/memory"
)

type fakeMarket struct {
	price   decimal.Decimal
	candles []domain.Candle
}

func (f *fakeMarket) GetCurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeMarket) GetKlines(context.Context, string, string, int) ([]domain.Candle, error) {
	return f.candles, nil
}

type fakeResolver struct {
	known map[string]bool
}

func (f *fakeResolver) Resolve(_ context.Context, symbol string) error {
	if !f.known[symbol] {
		return errors.Wrapf(domain.ErrSymbolUnresolved, "trading pair %s not found", symbol)
	}
	return nil
}

func risingCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := decimal.NewFromFloat(100 + float64(i))
		out[i] = domain.Candle{Open: c, High: c, Low: c, Close: c, Volume: decimal.NewFromInt(1)}
	}
	return out
}

func newTestGenerator(market *fakeMarket, resolver *fakeResolver, store *memory.SignalStore) *Generator {
	return NewGenerator(market, resolver, store, indicators.NewEngine(indicators.Config{}),
		DefaultScoringConfig(), zap.NewNop())
}

func TestGeneratePersistsPendingSignal(t *testing.T) {
	store := memory.NewSignalStore()
	market := &fakeMarket{price: decimal.NewFromFloat(150), candles: risingCandles(60)}
	g := newTestGenerator(market, &fakeResolver{known: map[string]bool{"BTCUSDT": true}}, store)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	sig, err := g.Generate(context.Background(), "BTCUSDT", "1h", 60, Attribution{})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, domain.SignalStatusPending, sig.Status)
	assert.True(t, sig.Confidence >= 0 && sig.Confidence <= 1, "confidence stored as 0..1, got %f", sig.Confidence)
	assert.Equal(t, now, sig.CreatedAt)
	assert.Equal(t, now.Add(24*time.Hour), sig.ExpiresAt)
	assert.True(t, sig.Price.Equal(decimal.NewFromFloat(150)))
	assert.NotEmpty(t, sig.Indicators.Reasons)

	stored, err := store.GetByID(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, sig.ID, stored.ID)
}

func TestGenerateUnknownSymbol(t *testing.T) {
	store := memory.NewSignalStore()
	market := &fakeMarket{price: decimal.NewFromFloat(150), candles: risingCandles(60)}
	g := newTestGenerator(market, &fakeResolver{known: map[string]bool{}}, store)

	_, err := g.Generate(context.Background(), "NOPEUSDT", "1h", 60, Attribution{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSymbolUnresolved))

	signals, err := store.List(context.Background(), domain.SignalFilter{})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestGenerateInsufficientHistory(t *testing.T) {
	store := memory.NewSignalStore()
	market := &fakeMarket{price: decimal.NewFromFloat(150), candles: risingCandles(10)}
	g := newTestGenerator(market, &fakeResolver{known: map[string]bool{"BTCUSDT": true}}, store)

	_, err := g.Generate(context.Background(), "BTCUSDT", "1h", 10, Attribution{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	signals, err := store.List(context.Background(), domain.SignalFilter{})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestGenerateBatchCollectsFailures(t *testing.T) {
	store := memory.NewSignalStore()
	market := &fakeMarket{price: decimal.NewFromFloat(150), candles: risingCandles(60)}
	g := newTestGenerator(market, &fakeResolver{known: map[string]bool{
		"BTCUSDT": true,
		"ETHUSDT": true,
	}}, store)

	signals, failures := g.GenerateBatch(context.Background(),
		[]string{"BTCUSDT", "NOPEUSDT", "ETHUSDT"}, "1h", 60, Attribution{})

	require.Len(t, signals, 2)
	assert.Equal(t, "BTCUSDT", signals[0].Symbol)
	assert.Equal(t, "ETHUSDT", signals[1].Symbol)

	require.Len(t, failures, 1)
	assert.True(t, errors.Is(failures["NOPEUSDT"], domain.ErrSymbolUnresolved))
}

func TestExpireStale(t *testing.T) {
	store := memory.NewSignalStore()
	market := &fakeMarket{price: decimal.NewFromFloat(150), candles: risingCandles(60)}
	g := newTestGenerator(market, &fakeResolver{known: map[string]bool{"BTCUSDT": true}}, store)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }

	stale, err := g.Generate(context.Background(), "BTCUSDT", "1h", 60, Attribution{})
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(23 * time.Hour) }
	fresh, err := g.Generate(context.Background(), "BTCUSDT", "1h", 60, Attribution{})
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(25 * time.Hour) }
	n, err := g.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExpired, got.Status)

	got, err = store.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusPending, got.Status)
}
