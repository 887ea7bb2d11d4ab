package marketdata

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// BybitProvider implements Provider on top of the Bybit V5 spot API.
type BybitProvider struct {
	client *bybit.Client
}

// NewBybitProvider creates a Bybit market data provider.
func NewBybitProvider(client *bybit.Client) *BybitProvider {
	return &BybitProvider{client: client}
}

// GetCurrentPrice returns the last traded spot price for the symbol.
func (p *BybitProvider) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := bybit.SymbolV5(symbol)

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &sym,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to fetch price from Bybit for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, errors.Errorf("bybit API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// GetKlines fetches spot kline data from Bybit, oldest first.
func (p *BybitProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.Errorf("kline limit must be positive, got %d", limit)
	}

	bybitInterval, err := toBybitInterval(interval)
	if err != nil {
		return nil, err
	}

	result, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybitInterval,
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", symbol)
	}
	if len(result.Result.List) == 0 {
		return nil, errors.Errorf("bybit API returned no klines for %s", symbol)
	}

	return convertBybitKlines(result.Result.List, interval)
}

// convertBybitKlines turns the Bybit response, which is ordered newest first,
// into candles ordered oldest first.
func convertBybitKlines(list []bybit.V5GetKlineItem, interval string) ([]domain.Candle, error) {
	span := intervalDuration(interval)

	candles := make([]domain.Candle, len(list))
	for i, k := range list {
		msec, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		openTime := time.UnixMilli(msec)
		candles[len(list)-1-i] = domain.Candle{
			OpenTime:  openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: openTime.Add(span),
		}
	}
	return candles, nil
}

// toBybitInterval converts a Binance-style interval such as "15m", "4h" or
// "1d" into the Bybit V5 form ("15", "240", "D").
func toBybitInterval(interval string) (bybit.Interval, error) {
	if len(interval) < 2 {
		return "", errors.Errorf("invalid interval %q", interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return "", errors.Errorf("invalid interval %q", interval)
	}

	switch unit {
	case 'm':
		return bybit.Interval(strconv.Itoa(n)), nil
	case 'h':
		return bybit.Interval(strconv.Itoa(n * 60)), nil
	case 'd':
		if n != 1 {
			return "", errors.Errorf("bybit supports only the 1d daily interval, got %q", interval)
		}
		return bybit.Interval("D"), nil
	case 'w':
		if n != 1 {
			return "", errors.Errorf("bybit supports only the 1w weekly interval, got %q", interval)
		}
		return bybit.Interval("W"), nil
	default:
		return "", errors.Errorf("unsupported interval unit in %q", interval)
	}
}

func intervalDuration(interval string) time.Duration {
	if len(interval) < 2 {
		return 0
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return 0
	}
	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour
	}
	return 0
}
