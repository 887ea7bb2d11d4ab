package marketdata

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// StaticSymbolResolver resolves against a fixed allow-list. It serves venues
// where no listing endpoint is wired.
type StaticSymbolResolver struct {
	symbols map[string]struct{}
}

// NewStaticSymbolResolver creates a resolver for the given symbols.
func NewStaticSymbolResolver(symbols []string) *StaticSymbolResolver {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &StaticSymbolResolver{symbols: set}
}

// Resolve returns domain.ErrSymbolUnresolved for symbols outside the list.
func (r *StaticSymbolResolver) Resolve(_ context.Context, symbol string) error {
	if _, ok := r.symbols[symbol]; !ok {
		return errors.Wrapf(domain.ErrSymbolUnresolved, "trading pair %s not found", symbol)
	}
	return nil
}
