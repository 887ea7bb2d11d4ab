package signal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/services/indicators"
)

func dp(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

type seriesInput struct {
	prevHist  float64
	hist      float64
	rsi       float64
	upper     float64
	middle    float64
	lower     float64
	bandwidth float64
}

func makeSeries(in seriesInput) *indicators.Series {
	return &indicators.Series{
		MACD: []indicators.MACDPoint{
			{Value: dp(in.prevHist), Signal: dp(0), Histogram: dp(in.prevHist)},
			{Value: dp(in.hist), Signal: dp(0), Histogram: dp(in.hist)},
		},
		RSI: []*decimal.Decimal{dp(50), dp(in.rsi)},
		Bollinger: []indicators.BollingerPoint{
			{},
			{
				Upper:     dp(in.upper),
				Middle:    dp(in.middle),
				Lower:     dp(in.lower),
				Bandwidth: dp(in.bandwidth),
			},
		},
	}
}

func TestAnalyzeClassification(t *testing.T) {
	cfg := DefaultScoringConfig()

	cases := []struct {
		name           string
		in             seriesInput
		price          float64
		wantScore      int
		wantType       domain.SignalType
		wantConfidence float64
	}{
		{
			name:           "golden cross with oversold rsi and lower band break",
			in:             seriesInput{prevHist: -1, hist: 1, rsi: 25, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          85,
			wantScore:      65,
			wantType:       domain.SignalStrongBuy,
			wantConfidence: 95,
		},
		{
			name:           "death cross with overbought rsi and upper band break",
			in:             seriesInput{prevHist: 1, hist: -1, rsi: 80, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          115,
			wantScore:      -65,
			wantType:       domain.SignalStrongSell,
			wantConfidence: 95,
		},
		{
			name:           "golden cross alone",
			in:             seriesInput{prevHist: -1, hist: 1, rsi: 50, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          100,
			wantScore:      30,
			wantType:       domain.SignalBuy,
			wantConfidence: 85,
		},
		{
			name:           "oversold rsi alone",
			in:             seriesInput{prevHist: 0, hist: 0, rsi: 25, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          100,
			wantScore:      20,
			wantType:       domain.SignalBuy,
			wantConfidence: 80,
		},
		{
			name:           "bullish trend without cross stays neutral",
			in:             seriesInput{prevHist: 1, hist: 2, rsi: 50, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          100,
			wantScore:      10,
			wantType:       domain.SignalNeutral,
			wantConfidence: 55,
		},
		{
			name:           "bearish trend without cross stays neutral",
			in:             seriesInput{prevHist: -2, hist: -1, rsi: 50, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          100,
			wantScore:      -10,
			wantType:       domain.SignalNeutral,
			wantConfidence: 55,
		},
		{
			name:           "overbought rsi alone",
			in:             seriesInput{prevHist: 0, hist: 0, rsi: 75, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          100,
			wantScore:      -20,
			wantType:       domain.SignalSell,
			wantConfidence: 80,
		},
		{
			name:           "flat market",
			in:             seriesInput{prevHist: 0, hist: 0, rsi: 50, upper: 110, middle: 100, lower: 90, bandwidth: 0.2},
			price:          100,
			wantScore:      0,
			wantType:       domain.SignalNeutral,
			wantConfidence: 50,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Analyze(cfg, makeSeries(tc.in), decimal.NewFromFloat(tc.price))

			assert.Equal(t, tc.wantScore, got.Score)
			assert.Equal(t, tc.wantType, got.Type)
			assert.InDelta(t, tc.wantConfidence, got.Confidence, 1e-9)
		})
	}
}

func TestAnalyzeCrossSuppressesTrendScore(t *testing.T) {
	cfg := DefaultScoringConfig()

	// the histogram is positive after the golden cross, but the trend points
	// must not be added on top of the cross points
	got := Analyze(cfg, makeSeries(seriesInput{
		prevHist: -1, hist: 1, rsi: 50,
		upper: 110, middle: 100, lower: 90, bandwidth: 0.2,
	}), decimal.NewFromFloat(100))

	assert.Equal(t, cfg.CrossoverScore, got.Score)
	assert.Equal(t, crossoverGolden, got.Snapshot.MACD.Crossover)
	assert.Equal(t, trendBullish, got.Snapshot.MACD.Trend)
}

func TestAnalyzeSnapshotLabels(t *testing.T) {
	cfg := DefaultScoringConfig()

	got := Analyze(cfg, makeSeries(seriesInput{
		prevHist: 1, hist: -1, rsi: 80,
		upper: 110, middle: 100, lower: 90, bandwidth: 0.2,
	}), decimal.NewFromFloat(115))

	assert.Equal(t, crossoverDeath, got.Snapshot.MACD.Crossover)
	assert.Equal(t, trendBearish, got.Snapshot.MACD.Trend)
	assert.Equal(t, rsiOverbought, got.Snapshot.RSI.Condition)
	assert.Equal(t, positionAboveUpper, got.Snapshot.Bollinger.Position)
	assert.False(t, got.Snapshot.Bollinger.Squeeze)
	assert.Contains(t, got.Snapshot.Reasons, "MACD death cross (sell signal)")
	assert.Contains(t, got.Snapshot.Reasons, "RSI overbought (80.00)")
	assert.Contains(t, got.Snapshot.Reasons, "price above upper Bollinger band (overbought)")
}

func TestAnalyzeSqueezeIsInformational(t *testing.T) {
	cfg := DefaultScoringConfig()

	got := Analyze(cfg, makeSeries(seriesInput{
		prevHist: 0, hist: 0, rsi: 50,
		upper: 101, middle: 100, lower: 99, bandwidth: 0.02,
	}), decimal.NewFromFloat(100))

	assert.True(t, got.Snapshot.Bollinger.Squeeze)
	assert.Contains(t, got.Snapshot.Reasons, "Bollinger bands squeeze (breakout ahead)")
	// the squeeze flags volatility, it never moves the score
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, domain.SignalNeutral, got.Type)
}

func TestAnalyzeNoSignalReason(t *testing.T) {
	cfg := DefaultScoringConfig()

	got := Analyze(cfg, makeSeries(seriesInput{
		prevHist: 0, hist: 0, rsi: 50,
		upper: 110, middle: 100, lower: 90, bandwidth: 0.2,
	}), decimal.NewFromFloat(100))

	require.Len(t, got.Snapshot.Reasons, 1)
	assert.Equal(t, "no significant signal", got.Snapshot.Reasons[0])
}

func TestAnalyzeWarmupValuesAbsent(t *testing.T) {
	cfg := DefaultScoringConfig()

	// nil latest values read as neutral, never panic
	series := &indicators.Series{
		MACD:      []indicators.MACDPoint{{}, {}},
		RSI:       []*decimal.Decimal{nil, nil},
		Bollinger: []indicators.BollingerPoint{{}, {}},
	}
	got := Analyze(cfg, series, decimal.NewFromFloat(100))

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, domain.SignalNeutral, got.Type)
	assert.Equal(t, positionUnknown, got.Snapshot.Bollinger.Position)
	assert.Equal(t, rsiNeutral, got.Snapshot.RSI.Condition)
	assert.Equal(t, trendNeutral, got.Snapshot.MACD.Trend)
}

func TestDefaultScoringConfigDeterminism(t *testing.T) {
	cfg := DefaultScoringConfig()
	in := seriesInput{prevHist: -1, hist: 1, rsi: 25, upper: 110, middle: 100, lower: 90, bandwidth: 0.2}

	first := Analyze(cfg, makeSeries(in), decimal.NewFromFloat(85))
	second := Analyze(cfg, makeSeries(in), decimal.NewFromFloat(85))

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Type, second.Type)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Snapshot.Reasons, second.Snapshot.Reasons)
}
