package indicators

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

func flatSeries(n int, price float64) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromFloat(price)
	}
	return out
}

func risingSeries(n int, start, step float64) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromFloat(start + float64(i)*step)
	}
	return out
}

func TestInsufficientData(t *testing.T) {
	engine := NewEngine(Config{})

	tests := []struct {
		name     string
		compute  func([]decimal.Decimal) error
		length   int
		required int
	}{
		{
			name: "MACD below slow+signal",
			compute: func(closes []decimal.Decimal) error {
				_, err := engine.MACD(closes)
				return err
			},
			length:   34,
			required: 35,
		},
		{
			name: "RSI below period+1",
			compute: func(closes []decimal.Decimal) error {
				_, err := engine.RSI(closes)
				return err
			},
			length:   14,
			required: 15,
		},
		{
			name: "BollingerBands below period",
			compute: func(closes []decimal.Decimal) error {
				_, err := engine.BollingerBands(closes)
				return err
			},
			length:   19,
			required: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.compute(flatSeries(tt.length, 100))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInsufficientData))

			var detail *domain.InsufficientDataError
			require.True(t, errors.As(err, &detail))
			assert.Equal(t, tt.required, detail.Required)
			assert.Equal(t, tt.length, detail.Got)
		})
	}
}

func TestWarmupNullPadding(t *testing.T) {
	engine := NewEngine(Config{})
	closes := risingSeries(40, 100, 1)

	// slow EMA warm-up (25) plus signal EMA warm-up (8)
	macd, err := engine.MACD(closes)
	require.NoError(t, err)
	require.Len(t, macd, len(closes))
	for i := 0; i < 33; i++ {
		assert.Nil(t, macd[i].Value, "index %d should be warm-up", i)
		assert.Nil(t, macd[i].Signal, "index %d should be warm-up", i)
		assert.Nil(t, macd[i].Histogram, "index %d should be warm-up", i)
	}
	for i := 33; i < len(closes); i++ {
		assert.NotNil(t, macd[i].Value, "index %d should be defined", i)
		assert.NotNil(t, macd[i].Signal, "index %d should be defined", i)
		assert.NotNil(t, macd[i].Histogram, "index %d should be defined", i)
	}

	rsi, err := engine.RSI(closes)
	require.NoError(t, err)
	require.Len(t, rsi, len(closes))
	for i := 0; i < 14; i++ {
		assert.Nil(t, rsi[i], "index %d should be warm-up", i)
	}
	for i := 14; i < len(closes); i++ {
		assert.NotNil(t, rsi[i], "index %d should be defined", i)
	}

	bands, err := engine.BollingerBands(closes)
	require.NoError(t, err)
	require.Len(t, bands, len(closes))
	for i := 0; i < 19; i++ {
		assert.Nil(t, bands[i].Middle, "index %d should be warm-up", i)
	}
	for i := 19; i < len(closes); i++ {
		require.NotNil(t, bands[i].Middle, "index %d should be defined", i)
	}
}

func TestFlatSeriesConverges(t *testing.T) {
	engine := NewEngine(Config{})
	closes := flatSeries(40, 100)

	series, err := engine.ComputeAll(closes)
	require.NoError(t, err)

	last := len(closes) - 1

	// trend oscillator collapses to zero on a flat price
	assert.True(t, series.MACD[last].Value.IsZero())
	assert.True(t, series.MACD[last].Signal.IsZero())
	assert.True(t, series.MACD[last].Histogram.IsZero())

	// momentum reads neutral
	assert.True(t, series.RSI[last].Equal(decimal.NewFromInt(50)))

	// volatility bands pinch onto the price
	assert.True(t, series.Bollinger[last].Upper.Equal(decimal.NewFromInt(100)))
	assert.True(t, series.Bollinger[last].Middle.Equal(decimal.NewFromInt(100)))
	assert.True(t, series.Bollinger[last].Lower.Equal(decimal.NewFromInt(100)))
	assert.True(t, series.Bollinger[last].Bandwidth.IsZero())
}

func TestRSIExtremes(t *testing.T) {
	engine := NewEngine(Config{})

	rsi, err := engine.RSI(risingSeries(20, 100, 1))
	require.NoError(t, err)
	assert.True(t, rsi[19].Equal(decimal.NewFromInt(100)), "monotonic gains read 100, got %s", rsi[19])

	falling := make([]decimal.Decimal, 20)
	for i := range falling {
		falling[i] = decimal.NewFromFloat(100 - float64(i))
	}
	rsi, err = engine.RSI(falling)
	require.NoError(t, err)
	assert.True(t, rsi[19].IsZero(), "monotonic losses read 0, got %s", rsi[19])
}

func TestBollingerBandwidth(t *testing.T) {
	engine := NewEngine(Config{})

	// alternate 90/110 so the window has known dispersion around mean 100
	closes := make([]decimal.Decimal, 20)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = decimal.NewFromInt(90)
		} else {
			closes[i] = decimal.NewFromInt(110)
		}
	}

	bands, err := engine.BollingerBands(closes)
	require.NoError(t, err)

	last := bands[19]
	require.NotNil(t, last.Middle)
	assert.True(t, last.Middle.Equal(decimal.NewFromInt(100)))

	// sigma of the window is 10, so the bands spread roughly 20 around the mean
	upperSpread, _ := last.Upper.Sub(*last.Middle).Float64()
	lowerSpread, _ := last.Middle.Sub(*last.Lower).Float64()
	assert.InDelta(t, 20.0, upperSpread, 0.6)
	assert.InDelta(t, upperSpread, lowerSpread, 1e-9)

	wantBandwidth, _ := last.Upper.Sub(*last.Lower).Div(*last.Middle).Float64()
	gotBandwidth, _ := last.Bandwidth.Float64()
	assert.InDelta(t, wantBandwidth, gotBandwidth, 1e-9)
}

func TestDeterminism(t *testing.T) {
	engine := NewEngine(Config{})
	closes := risingSeries(50, 250, 0.5)

	first, err := engine.ComputeAll(closes)
	require.NoError(t, err)
	second, err := engine.ComputeAll(closes)
	require.NoError(t, err)

	last := len(closes) - 1
	assert.True(t, first.MACD[last].Histogram.Equal(*second.MACD[last].Histogram))
	assert.True(t, first.RSI[last].Equal(*second.RSI[last]))
	assert.True(t, first.Bollinger[last].Bandwidth.Equal(*second.Bollinger[last].Bandwidth))
}

func TestRejectsInvalidInput(t *testing.T) {
	engine := NewEngine(Config{})

	_, err := engine.RSI(nil)
	require.Error(t, err)

	closes := flatSeries(20, 100)
	closes[3] = decimal.NewFromInt(-5)
	_, err = engine.RSI(closes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not positive")
}
