package marketdata

import (
	"context"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// BinanceSymbolResolver validates symbols against the Binance exchange
// listing. The listing is fetched lazily and refreshed once on a miss, so a
// freshly listed pair resolves without restarting the process.
type BinanceSymbolResolver struct {
	client *binance.Client

	mu      sync.Mutex
	symbols map[string]struct{}
}

// NewBinanceSymbolResolver creates a resolver backed by exchange info.
func NewBinanceSymbolResolver(client *binance.Client) *BinanceSymbolResolver {
	return &BinanceSymbolResolver{client: client}
}

// Resolve returns domain.ErrSymbolUnresolved when the symbol is not listed.
func (r *BinanceSymbolResolver) Resolve(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.symbols != nil {
		if _, ok := r.symbols[symbol]; ok {
			return nil
		}
	}

	if err := r.syncLocked(ctx); err != nil {
		return errors.Wrap(err, "failed to sync trading pairs")
	}

	if _, ok := r.symbols[symbol]; !ok {
		return errors.Wrapf(domain.ErrSymbolUnresolved, "trading pair %s not found", symbol)
	}
	return nil
}

func (r *BinanceSymbolResolver) syncLocked(ctx context.Context) error {
	ctx, cancel := withReadTimeout(ctx)
	defer cancel()

	info, err := r.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return err
	}

	symbols := make(map[string]struct{}, len(info.Symbols))
	for _, s := range info.Symbols {
		symbols[s.Symbol] = struct{}{}
	}
	r.symbols = symbols
	return nil
}
