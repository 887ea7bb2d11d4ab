package signal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/services/indicators"
)

// Indicator state labels stored in the signal snapshot.
const (
	trendBullish = "bullish"
	trendBearish = "bearish"
	trendNeutral = "neutral"

	crossoverGolden = "golden"
	crossoverDeath  = "death"
	crossoverNone   = "none"

	rsiOverbought = "overbought"
	rsiOversold   = "oversold"
	rsiNeutral    = "neutral"

	positionAboveUpper = "above_upper"
	positionBelowLower = "below_lower"
	positionWithin     = "within"
	positionUnknown    = "unknown"
)

// ScoringConfig holds the empirical point values and thresholds of the
// scoring heuristic. The defaults are deliberate: they are carried over
// verbatim rather than re-derived.
type ScoringConfig struct {
	CrossoverScore int     // golden/death cross weight
	TrendScore     int     // histogram sign weight
	RSIScore       int     // overbought/oversold weight
	BandScore      int     // price outside volatility bands weight
	RSIOverbought  float64 // RSI above this reads overbought
	RSIOversold    float64 // RSI below this reads oversold
	SqueezeMax     float64 // bandwidth below this flags a squeeze
	StrongLevel    int     // |score| at or above: strong buy/sell
	WeakLevel      int     // |score| at or above: buy/sell
}

// DefaultScoringConfig returns the heuristic's standard constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CrossoverScore: 30,
		TrendScore:     10,
		RSIScore:       20,
		BandScore:      15,
		RSIOverbought:  70,
		RSIOversold:    30,
		SqueezeMax:     0.05,
		StrongLevel:    40,
		WeakLevel:      20,
	}
}

// Analysis is the scored interpretation of one symbol's indicator state.
type Analysis struct {
	Score      int
	Type       domain.SignalType
	Confidence float64 // 0..100
	Snapshot   domain.IndicatorSnapshot
}

// Analyze scores the latest indicator values against the current price and
// classifies the result. It is a pure function: identical inputs always
// produce the identical classification and confidence.
func Analyze(cfg ScoringConfig, series *indicators.Series, price decimal.Decimal) Analysis {
	last := len(series.MACD) - 1
	latestMACD := series.MACD[last]
	latestRSI := series.RSI[last]
	latestBB := series.Bollinger[last]

	score := 0
	reasons := make([]string, 0, 4)

	trend := trendNeutral
	if latestMACD.Histogram != nil {
		switch latestMACD.Histogram.Sign() {
		case 1:
			trend = trendBullish
		case -1:
			trend = trendBearish
		}
	}

	crossover := crossoverNone
	if last >= 1 {
		prev := series.MACD[last-1]
		if prev.Histogram != nil && latestMACD.Histogram != nil {
			switch {
			case prev.Histogram.Sign() < 0 && latestMACD.Histogram.Sign() > 0:
				crossover = crossoverGolden
			case prev.Histogram.Sign() > 0 && latestMACD.Histogram.Sign() < 0:
				crossover = crossoverDeath
			}
		}
	}

	switch crossover {
	case crossoverGolden:
		score += cfg.CrossoverScore
		reasons = append(reasons, "MACD golden cross (buy signal)")
	case crossoverDeath:
		score -= cfg.CrossoverScore
		reasons = append(reasons, "MACD death cross (sell signal)")
	}

	// the cross already includes the sign flip; only score the plain trend
	// when no cross fired
	if crossover == crossoverNone {
		switch trend {
		case trendBullish:
			score += cfg.TrendScore
			reasons = append(reasons, "MACD trend bullish")
		case trendBearish:
			score -= cfg.TrendScore
			reasons = append(reasons, "MACD trend bearish")
		}
	}

	rsiCondition := rsiNeutral
	if latestRSI != nil {
		rsiVal, _ := latestRSI.Float64()
		switch {
		case rsiVal < cfg.RSIOversold:
			rsiCondition = rsiOversold
			score += cfg.RSIScore
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.2f)", rsiVal))
		case rsiVal > cfg.RSIOverbought:
			rsiCondition = rsiOverbought
			score -= cfg.RSIScore
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.2f)", rsiVal))
		}
	}

	position := positionUnknown
	squeeze := false
	if latestBB.Upper != nil && latestBB.Lower != nil && latestBB.Middle != nil {
		switch {
		case price.GreaterThan(*latestBB.Upper):
			position = positionAboveUpper
			score -= cfg.BandScore
			reasons = append(reasons, "price above upper Bollinger band (overbought)")
		case price.LessThan(*latestBB.Lower):
			position = positionBelowLower
			score += cfg.BandScore
			reasons = append(reasons, "price below lower Bollinger band (oversold)")
		default:
			position = positionWithin
		}

		if latestBB.Bandwidth != nil {
			bw, _ := latestBB.Bandwidth.Float64()
			if bw < cfg.SqueezeMax {
				squeeze = true
				reasons = append(reasons, "Bollinger bands squeeze (breakout ahead)")
			}
		}
	}

	signalType, confidence := classify(cfg, score)

	if len(reasons) == 0 {
		reasons = append(reasons, "no significant signal")
	}

	return Analysis{
		Score:      score,
		Type:       signalType,
		Confidence: confidence,
		Snapshot: domain.IndicatorSnapshot{
			MACD: domain.MACDSnapshot{
				Value:     latestMACD.Value,
				Signal:    latestMACD.Signal,
				Histogram: latestMACD.Histogram,
				Trend:     trend,
				Crossover: crossover,
			},
			RSI: domain.RSISnapshot{
				Value:     latestRSI,
				Condition: rsiCondition,
			},
			Bollinger: domain.BollingerSnapshot{
				Upper:     latestBB.Upper,
				Middle:    latestBB.Middle,
				Lower:     latestBB.Lower,
				Position:  position,
				Bandwidth: latestBB.Bandwidth,
				Squeeze:   squeeze,
			},
			Reasons: reasons,
		},
	}
}

func classify(cfg ScoringConfig, score int) (domain.SignalType, float64) {
	abs := score
	if abs < 0 {
		abs = -abs
	}

	switch {
	case score >= cfg.StrongLevel:
		return domain.SignalStrongBuy, capConfidence(50+float64(score), 95)
	case score >= cfg.WeakLevel:
		return domain.SignalBuy, capConfidence(60+float64(score), 85)
	case score <= -cfg.StrongLevel:
		return domain.SignalStrongSell, capConfidence(50+float64(abs), 95)
	case score <= -cfg.WeakLevel:
		return domain.SignalSell, capConfidence(60+float64(abs), 85)
	default:
		return domain.SignalNeutral, 50 + float64(abs)/2
	}
}

func capConfidence(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
