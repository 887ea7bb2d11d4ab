// Package indicators computes technical analysis indicators over
// closing-price series: MACD (trend), RSI (momentum) and Bollinger Bands
// (volatility). The math runs through the cinar/indicator library; this
// package adds the decimal boundary and time alignment: output length always
// equals input length, with nil values for warm-up positions so each output
// step stays aligned with its input step.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// Default periods, matching the classic parameterizations. The Bollinger
// bands sit at two standard deviations around the moving average.
const (
	DefaultMACDFastPeriod   = 12
	DefaultMACDSlowPeriod   = 26
	DefaultMACDSignalPeriod = 9
	DefaultRSIPeriod        = 14
	DefaultBollingerPeriod  = 20
)

// Config overrides indicator periods. Zero fields fall back to defaults.
type Config struct {
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int
	RSIPeriod        int
	BollingerPeriod  int
}

func (c Config) withDefaults() Config {
	if c.MACDFastPeriod == 0 {
		c.MACDFastPeriod = DefaultMACDFastPeriod
	}
	if c.MACDSlowPeriod == 0 {
		c.MACDSlowPeriod = DefaultMACDSlowPeriod
	}
	if c.MACDSignalPeriod == 0 {
		c.MACDSignalPeriod = DefaultMACDSignalPeriod
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = DefaultRSIPeriod
	}
	if c.BollingerPeriod == 0 {
		c.BollingerPeriod = DefaultBollingerPeriod
	}
	return c
}

// MACDPoint is one time step of the trend oscillator. Fields are nil until
// the warm-up period has passed.
type MACDPoint struct {
	Value     *decimal.Decimal
	Signal    *decimal.Decimal
	Histogram *decimal.Decimal
}

// BollingerPoint is one time step of the volatility bands. Fields are nil
// until the warm-up period has passed. Bandwidth is (upper-lower)/middle.
type BollingerPoint struct {
	Upper     *decimal.Decimal
	Middle    *decimal.Decimal
	Lower     *decimal.Decimal
	Bandwidth *decimal.Decimal
}

// Series aligns all indicator families per time step. Each slice has the
// same length as the input price series.
type Series struct {
	MACD      []MACDPoint
	RSI       []*decimal.Decimal
	Bollinger []BollingerPoint
}

// Engine computes indicators with a fixed configuration.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine. Zero config fields use defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// MACD computes the trend oscillator: the difference of two EMAs, smoothed
// again by a signal-line EMA. Leading positions are nil until both the slow
// EMA and the signal EMA have warmed up.
func (e *Engine) MACD(closes []decimal.Decimal) ([]MACDPoint, error) {
	required := e.cfg.MACDSlowPeriod + e.cfg.MACDSignalPeriod
	if len(closes) < required {
		return nil, &domain.InsufficientDataError{Indicator: "MACD", Required: required, Got: len(closes)}
	}
	if err := validateCloses(closes); err != nil {
		return nil, err
	}

	macd := trend.NewMacdWithPeriod[float64](e.cfg.MACDFastPeriod, e.cfg.MACDSlowPeriod, e.cfg.MACDSignalPeriod)
	macdChan, signalChan := macd.Compute(helper.SliceToChan(toFloats(closes)))

	// both output channels must drain concurrently or the pipeline blocks
	var signalLine []float64
	done := make(chan struct{})
	go func() {
		defer close(done)
		signalLine = helper.ChanToSlice(signalChan)
	}()
	macdLine := helper.ChanToSlice(macdChan)
	<-done

	points := make([]MACDPoint, len(closes))
	pad := len(closes) - len(macdLine)
	for i, v := range macdLine {
		points[pad+i] = MACDPoint{
			Value:     decPtr(v),
			Signal:    decPtr(signalLine[i]),
			Histogram: decPtr(v - signalLine[i]),
		}
	}

	return points, nil
}

// RSI computes the Wilder relative-strength index, bounded to [0,100].
// Values are defined from index period onward (period+1 observations).
// A window with neither gains nor losses reads as neutral 50.
func (e *Engine) RSI(closes []decimal.Decimal) ([]*decimal.Decimal, error) {
	period := e.cfg.RSIPeriod
	required := period + 1
	if len(closes) < required {
		return nil, &domain.InsufficientDataError{Indicator: "RSI", Required: required, Got: len(closes)}
	}
	if err := validateCloses(closes); err != nil {
		return nil, err
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	values := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(toFloats(closes))))

	out := make([]*decimal.Decimal, len(closes))
	pad := len(closes) - len(values)
	for i, v := range values {
		// a flat window has zero average gain and loss, which the ratio
		// turns into NaN
		if math.IsNaN(v) {
			v = 50
		}
		out[pad+i] = decPtr(v)
	}

	return out, nil
}

// BollingerBands computes the moving average with bands two standard
// deviations away. Values are defined from index period-1 onward.
func (e *Engine) BollingerBands(closes []decimal.Decimal) ([]BollingerPoint, error) {
	period := e.cfg.BollingerPeriod
	if len(closes) < period {
		return nil, &domain.InsufficientDataError{Indicator: "BollingerBands", Required: period, Got: len(closes)}
	}
	if err := validateCloses(closes); err != nil {
		return nil, err
	}

	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	upperChan, middleChan, lowerChan := bb.Compute(helper.SliceToChan(toFloats(closes)))

	var upper, lower []float64
	done := make(chan struct{}, 2)
	go func() {
		upper = helper.ChanToSlice(upperChan)
		done <- struct{}{}
	}()
	go func() {
		lower = helper.ChanToSlice(lowerChan)
		done <- struct{}{}
	}()
	middle := helper.ChanToSlice(middleChan)
	<-done
	<-done

	out := make([]BollingerPoint, len(closes))
	pad := len(closes) - len(middle)
	for i, m := range middle {
		var bandwidth float64
		if m != 0 {
			bandwidth = (upper[i] - lower[i]) / m
		}
		out[pad+i] = BollingerPoint{
			Upper:     decPtr(upper[i]),
			Middle:    decPtr(m),
			Lower:     decPtr(lower[i]),
			Bandwidth: decPtr(bandwidth),
		}
	}

	return out, nil
}

// ComputeAll runs every indicator family over the same closing prices.
// The series requires enough history for the longest warm-up (MACD).
func (e *Engine) ComputeAll(closes []decimal.Decimal) (*Series, error) {
	macd, err := e.MACD(closes)
	if err != nil {
		return nil, err
	}
	rsi, err := e.RSI(closes)
	if err != nil {
		return nil, err
	}
	bands, err := e.BollingerBands(closes)
	if err != nil {
		return nil, err
	}
	return &Series{MACD: macd, RSI: rsi, Bollinger: bands}, nil
}

func validateCloses(closes []decimal.Decimal) error {
	if len(closes) == 0 {
		return errors.New("price series is empty")
	}
	for i, c := range closes {
		if c.Sign() <= 0 {
			return errors.Errorf("price at index %d is not positive: %s", i, c.String())
		}
	}
	return nil
}

func toFloats(closes []decimal.Decimal) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i], _ = c.Float64()
	}
	return out
}

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
