package execution

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Exchange lot step sizes per symbol. Unknown symbols use the BTC step,
// the finest granularity we trade.
var lotSteps = map[string]decimal.Decimal{
	"BTCUSDT": decimal.RequireFromString("0.00001"),
	"ETHUSDT": decimal.RequireFromString("0.0001"),
	"BNBUSDT": decimal.RequireFromString("0.01"),
}

var defaultLotStep = decimal.RequireFromString("0.00001")

// LotStep returns the quantity granularity for the symbol.
func LotStep(symbol string) decimal.Decimal {
	if step, ok := lotSteps[symbol]; ok {
		return step
	}
	return defaultLotStep
}

// CalculateQuantity converts a quote-currency amount into a base quantity at
// the given price, rounded DOWN to the symbol's lot step. Rounding down keeps
// the order cost at or under the approved amount.
func CalculateQuantity(symbol string, amount, price decimal.Decimal) (decimal.Decimal, error) {
	if price.Sign() <= 0 {
		return decimal.Decimal{}, errors.Errorf("price must be positive, got %s", price)
	}
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, errors.Errorf("amount must be positive, got %s", amount)
	}

	step := LotStep(symbol)
	qty := amount.Div(price).Div(step).Floor().Mul(step)
	if qty.Sign() <= 0 {
		return decimal.Decimal{}, errors.Errorf("amount %s buys less than one lot step of %s at price %s", amount, symbol, price)
	}
	return qty, nil
}

// quote assets we recognize as pair suffixes, longest first
var quoteAssets = []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB"}

// QuoteAsset extracts the quote currency from a trading pair symbol.
func QuoteAsset(symbol string) string {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return q
		}
	}
	return "USDT"
}
