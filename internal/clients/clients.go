// Package clients builds exchange API clients.
package clients

import (
	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
)

// NewBinanceClient creates a Binance REST client. Empty credentials are fine
// for public market data endpoints.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

// NewBybitClient creates a Bybit REST client.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	return bybit.NewClient().WithAuth(apiKey, apiSecret)
}
